package sequence

import "time"

// Kind identifies a driver variant.
type Kind string

// Driver kinds.
const (
	KindNone         Kind = "none"
	KindTween        Kind = "tween"
	KindStateMachine Kind = "state_machine"
	KindMedia        Kind = "media"
	KindWait         Kind = "wait"
	KindCustom       Kind = "custom"
)

// ValidKinds lists every driver kind that can appear in a schedule.
var ValidKinds = []Kind{KindNone, KindTween, KindStateMachine, KindMedia, KindWait, KindCustom}

// Driver executes the work of one phase of a Step.
//
// Prepare is called once before the first phase and must not block. Run
// starts the work and returns a Task whose completion is the phase's
// completion signal. Skip asks a running, skippable driver to fast-forward
// at its next suspension point; the Task then completes normally.
type Driver interface {
	Kind() Kind
	Prepare()
	Run() Task
	Skip()

	// Skippable reports whether the driver knows how to fast-forward.
	Skippable() bool

	// Resolved reports whether the driver's external target is set.
	// Unresolved drivers are never run; their phase completes at once.
	Resolved() bool
}

// Noop is the driver used for empty phase slots. It completes immediately.
var Noop Driver = noopDriver{}

type noopDriver struct{}

func (noopDriver) Kind() Kind      { return KindNone }
func (noopDriver) Prepare()        {}
func (noopDriver) Run() Task       { return Done }
func (noopDriver) Skip()           {}
func (noopDriver) Skippable() bool { return false }
func (noopDriver) Resolved() bool  { return true }

// runState tracks whether a driver is mid-run and whether a skip is pending.
type runState struct {
	running bool
	skipped bool
}

func (r *runState) begin() {
	r.running = true
	r.skipped = false
}

func (r *runState) end() {
	r.running = false
	r.skipped = false
}

func (r *runState) requestSkip() {
	if r.running {
		r.skipped = true
	}
}

// WaitDriver holds its phase open for a fixed duration.
type WaitDriver struct {
	Duration time.Duration

	state   runState
	elapsed time.Duration
}

// NewWait returns a fixed-wait driver.
func NewWait(d time.Duration) *WaitDriver {
	return &WaitDriver{Duration: d}
}

func (d *WaitDriver) Kind() Kind      { return KindWait }
func (d *WaitDriver) Prepare()        {}
func (d *WaitDriver) Skippable() bool { return true }
func (d *WaitDriver) Resolved() bool  { return true }

// Skip drops the remaining time to zero.
func (d *WaitDriver) Skip() { d.state.requestSkip() }

// Run starts the timer.
func (d *WaitDriver) Run() Task {
	d.state.begin()
	d.elapsed = 0
	return TaskFunc(func(dt time.Duration) bool {
		d.elapsed += dt
		if d.state.skipped || d.elapsed >= d.Duration {
			d.state.end()
			return true
		}
		return false
	})
}

// Remaining returns the time left on the timer.
func (d *WaitDriver) Remaining() time.Duration {
	if !d.state.running {
		return 0
	}
	if r := d.Duration - d.elapsed; r > 0 {
		return r
	}
	return 0
}
