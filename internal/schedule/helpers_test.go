package schedule

import (
	"context"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
	"github.com/nerrad567/gray-logic-sequencer/migrations"
)

// setupTestDB opens an in-memory database with every migration applied.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

// testDefinition returns a valid two-group definition.
func testDefinition(id, name string) *Definition {
	return &Definition{
		ID:                    id,
		Name:                  name,
		Slug:                  GenerateSlug(name),
		Skippable:             true,
		RemoveEmptyReferences: true,
		Groups: []GroupDef{
			{
				Name:   "logos",
				Policy: sequence.PolicyAny,
				Steps: []StepDef{
					{
						Name:            "logo",
						Surface:         "lobby-screen",
						ActivateSubject: true,
						Skippable:       true,
						Enter:           PhaseDef{Kind: sequence.KindTween},
						Main:            PhaseDef{Kind: sequence.KindWait, Duration: 2},
						Exit:            PhaseDef{Kind: sequence.KindTween},
					},
				},
			},
			{
				Name:   "sting",
				Policy: sequence.PolicyAll,
				Steps: []StepDef{
					{
						Name: "video",
						Main: PhaseDef{Kind: sequence.KindMedia, Target: "lobby-video", PrepareOnSetup: true},
					},
				},
			},
		},
	}
}

// mockLogger records warnings.
type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *mockLogger) Debug(string, ...any) {}
func (l *mockLogger) Info(string, ...any)  {}
func (l *mockLogger) Error(string, ...any) {}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *mockLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

// ─── Fake targets ───────────────────────────────────────────────────────────

type fakeSurface struct {
	mu          sync.Mutex
	level       float64
	active      bool
	interaction sequence.Interaction
}

func (s *fakeSurface) SetLevel(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = v
}

func (s *fakeSurface) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *fakeSurface) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *fakeSurface) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeSurface) Interaction() sequence.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interaction
}

func (s *fakeSurface) SetInteraction(v sequence.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interaction = v
}

type fakePlayer struct {
	prepared bool
	playing  bool
	frame    int64
}

func (p *fakePlayer) Configure(bool) {}
func (p *fakePlayer) Prepare()       { p.prepared = true }
func (p *fakePlayer) Prepared() bool { return p.prepared }
func (p *fakePlayer) Frame() int64   { return p.frame }
func (p *fakePlayer) Playing() bool  { return p.playing }
func (p *fakePlayer) SeekEnd()       { p.playing = false }

func (p *fakePlayer) Play() {
	p.playing = true
	p.frame = 1
}

type fakeAnimator struct {
	played []string
}

func (a *fakeAnimator) Play(state string, _ int)  { a.played = append(a.played, state) }
func (a *fakeAnimator) Seek(string, int, float64) {}

func (a *fakeAnimator) State(int) sequence.AnimatorState {
	return sequence.AnimatorState{NormalizedTime: 1}
}

type fakeTransition struct{}

func (fakeTransition) In() sequence.Task  { return sequence.Done }
func (fakeTransition) Out() sequence.Task { return sequence.Done }

// fakeResolver resolves from fixed maps.
type fakeResolver struct {
	surfaces    map[string]*fakeSurface
	players     map[string]*fakePlayer
	animators   map[string]*fakeAnimator
	transitions map[string]bool
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		surfaces:    map[string]*fakeSurface{"lobby-screen": {}},
		players:     map[string]*fakePlayer{"lobby-video": {}},
		animators:   map[string]*fakeAnimator{"mascot": {}},
		transitions: map[string]bool{"wipe": true},
	}
}

func (r *fakeResolver) Surface(id string) (Surface, bool) {
	s, ok := r.surfaces[id]
	if !ok {
		return nil, false
	}
	return s, true
}

func (r *fakeResolver) Animator(id string) (sequence.Animator, bool) {
	a, ok := r.animators[id]
	if !ok {
		return nil, false
	}
	return a, true
}

func (r *fakeResolver) MediaPlayer(id string) (sequence.MediaPlayer, bool) {
	p, ok := r.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func (r *fakeResolver) Transition(name string) (sequence.Transition, bool) {
	if !r.transitions[name] {
		return nil, false
	}
	return fakeTransition{}, true
}
