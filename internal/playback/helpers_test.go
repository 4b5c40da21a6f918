package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
	"github.com/nerrad567/gray-logic-sequencer/internal/targets"
)

const testTimeout = 2 * time.Second

// mockStore records execution writes.
type mockStore struct {
	mu      sync.Mutex
	execs   map[string]schedule.Execution
	creates int
	updates int
	pruned  []int
	fail    bool
}

func newMockStore() *mockStore {
	return &mockStore{execs: make(map[string]schedule.Execution)}
}

func (s *mockStore) CreateExecution(_ context.Context, exec *schedule.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store unavailable")
	}
	s.creates++
	s.execs[exec.ID] = copyExecution(exec)
	return nil
}

func (s *mockStore) UpdateExecution(_ context.Context, exec *schedule.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store unavailable")
	}
	s.updates++
	s.execs[exec.ID] = copyExecution(exec)
	return nil
}

func (s *mockStore) PruneExecutions(_ context.Context, _ string, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, keep)
	return 0, nil
}

func (s *mockStore) get(id string) (schedule.Execution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.execs[id]
	return e, ok
}

func (s *mockStore) prunes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pruned...)
}

func copyExecution(e *schedule.Execution) schedule.Execution {
	c := *e
	c.SkippedGroups = append([]int(nil), e.SkippedGroups...)
	return c
}

// recorder is a Sink that records events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Handle(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) last(t EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// startRunner runs a runner until the test ends.
func startRunner(t *testing.T, store ExecutionStore, sinks ...Sink) *Runner {
	t.Helper()

	dir, err := targets.NewDirectory(nil, config.SequencerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	return startRunnerWith(t, dir, store, sinks...)
}

// startRunnerWith runs a runner resolving targets through dir.
func startRunnerWith(t *testing.T, dir *targets.Directory, store ExecutionStore, sinks ...Sink) *Runner {
	t.Helper()

	r := NewRunner(Options{
		TickInterval: time.Millisecond,
		HistoryLimit: 5,
		Resolver:     dir,
		Executions:   store,
		Sinks:        sinks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Run() = %v", err)
			}
		case <-time.After(testTimeout):
			t.Error("runner did not stop")
		}
	})
	return r
}

// waitDefinition returns a definition of groups that each wait for the
// given number of seconds.
func waitDefinition(id string, waits ...float64) *schedule.Definition {
	def := &schedule.Definition{
		ID:                    id,
		Name:                  "Sequence " + id,
		Slug:                  "seq-" + id,
		Skippable:             true,
		RemoveEmptyReferences: true,
	}
	for i, w := range waits {
		def.Groups = append(def.Groups, schedule.GroupDef{
			Name:   "group-" + string(rune('a'+i)),
			Policy: sequence.PolicyAny,
			Steps: []schedule.StepDef{{
				Name:      "step",
				Skippable: true,
				Main:      schedule.PhaseDef{Kind: sequence.KindWait, Duration: w},
			}},
		})
	}
	return def
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}
