package sequence

import (
	"fmt"
	"sync"
	"time"
)

const tick = 100 * time.Millisecond

// ─── Mock Dependencies ─────────────────────────────────────────────

// recorder collects an ordered trace of driver events.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) index(event string) int {
	for i, e := range r.all() {
		if e == event {
			return i
		}
	}
	return -1
}

func (r *recorder) has(event string) bool {
	return r.index(event) >= 0
}

// tickDriver completes a fixed number of ticks after it starts.
type tickDriver struct {
	name      string
	ticks     int
	skippable bool
	rec       *recorder

	state    runState
	count    int
	prepared int
}

func newTickDriver(rec *recorder, name string, ticks int, skippable bool) *tickDriver {
	return &tickDriver{name: name, ticks: ticks, skippable: skippable, rec: rec}
}

func (d *tickDriver) Kind() Kind      { return KindCustom }
func (d *tickDriver) Prepare()        { d.prepared++ }
func (d *tickDriver) Skippable() bool { return d.skippable }
func (d *tickDriver) Resolved() bool  { return true }
func (d *tickDriver) Skip()           { d.state.requestSkip() }

func (d *tickDriver) Run() Task {
	d.state.begin()
	d.count = 0
	first := true
	d.rec.add("%s:start", d.name)
	return TaskFunc(func(time.Duration) bool {
		if d.state.skipped {
			d.rec.add("%s:skipped", d.name)
			d.rec.add("%s:end", d.name)
			d.state.end()
			return true
		}
		if !first {
			d.count++
		}
		first = false
		if d.count >= d.ticks {
			d.rec.add("%s:end", d.name)
			d.state.end()
			return true
		}
		return false
	})
}

// mockLogger records log calls.
type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Debug(string, ...any) {}
func (m *mockLogger) Info(string, ...any)  {}
func (m *mockLogger) Error(string, ...any) {}

func (m *mockLogger) Warn(msg string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

func (m *mockLogger) warnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warns)
}

// mockSurface is a level, interaction and activation target.
type mockSurface struct {
	mu          sync.Mutex
	level       float64
	levels      []float64
	interaction Interaction
	active      bool
	activations []bool
}

func (m *mockSurface) SetLevel(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = v
	m.levels = append(m.levels, v)
}

func (m *mockSurface) Interaction() Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interaction
}

func (m *mockSurface) SetInteraction(v Interaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interaction = v
}

func (m *mockSurface) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
	m.activations = append(m.activations, active)
}

// mockAnimator is a scripted animation controller.
type mockAnimator struct {
	mu     sync.Mutex
	played []string
	seeks  []string
	state  AnimatorState
	polls  int
}

func (m *mockAnimator) Play(state string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, state)
	m.state = AnimatorState{State: state}
}

func (m *mockAnimator) Seek(state string, _ int, t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, fmt.Sprintf("%s@%.1f", state, t))
	m.state = AnimatorState{State: state, NormalizedTime: t}
}

func (m *mockAnimator) State(int) AnimatorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	return m.state
}

func (m *mockAnimator) set(st AnimatorState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
}

// mockPlayer is a scripted media player.
type mockPlayer struct {
	mu         sync.Mutex
	configured bool
	loop       bool
	prepares   int
	prepared   bool
	plays      int
	frame      int64
	playing    bool
	seekEnds   int
}

func (m *mockPlayer) Configure(loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configured = true
	m.loop = loop
}

func (m *mockPlayer) Prepare() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepares++
}

func (m *mockPlayer) Prepared() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepared
}

func (m *mockPlayer) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
	m.playing = true
}

func (m *mockPlayer) Frame() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

func (m *mockPlayer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *mockPlayer) SeekEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekEnds++
	m.playing = false
}

func (m *mockPlayer) setPrepared(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepared = v
}

func (m *mockPlayer) setPlayback(frame int64, playing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = frame
	m.playing = playing
}

// ─── Helpers ───────────────────────────────────────────────────────

// traceStep builds a step whose phases are tickDrivers named
// "<name>.enter", "<name>.main" and "<name>.exit".
func traceStep(rec *recorder, name string, enter, main, exit int, skippable bool) *Step {
	return NewStep(StepConfig{
		Name:      name,
		Enter:     newTickDriver(rec, name+".enter", enter, true),
		Main:      newTickDriver(rec, name+".main", main, true),
		Exit:      newTickDriver(rec, name+".exit", exit, true),
		Skippable: skippable,
	})
}

// lifecycle counts sequencer notifications.
type lifecycle struct {
	started  int
	finished int
	skipped  []int
}

func (l *lifecycle) listener() Listener {
	return ListenerFuncs{
		Started:  func() { l.started++ },
		Skipped:  func(i int) { l.skipped = append(l.skipped, i) },
		Finished: func() { l.finished++ },
	}
}

func ticks(s *Sequencer, n int) {
	for i := 0; i < n; i++ {
		s.Tick(tick)
	}
}
