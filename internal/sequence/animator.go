package sequence

import "time"

// completeNormalizedTime is the normalized time at which a state has played
// through once.
const completeNormalizedTime = 1.0

// StateMachineDriver plays a named state on an Animator and waits until the
// controller reports the state complete and not mid-transition.
//
// On skip it plays ExitState when one is configured, otherwise it seeks the
// entry state to its normalized end.
type StateMachineDriver struct {
	Animator  Animator
	State     string
	ExitState string
	Layer     int

	state   runState
	started bool
}

// NewStateMachine returns a state-machine playback driver.
func NewStateMachine(a Animator, state string, layer int) *StateMachineDriver {
	return &StateMachineDriver{Animator: a, State: state, Layer: layer}
}

func (d *StateMachineDriver) Kind() Kind      { return KindStateMachine }
func (d *StateMachineDriver) Prepare()        {}
func (d *StateMachineDriver) Skippable() bool { return true }
func (d *StateMachineDriver) Resolved() bool  { return d.Animator != nil }

// Skip fast-forwards the state at the next tick.
func (d *StateMachineDriver) Skip() { d.state.requestSkip() }

// Run commands the controller and returns a task that polls it once per
// tick. The first poll happens on the tick after the command.
func (d *StateMachineDriver) Run() Task {
	d.state.begin()
	d.started = false
	d.Animator.Play(d.State, d.Layer)

	return TaskFunc(func(time.Duration) bool {
		if d.state.skipped {
			if d.ExitState != "" {
				d.Animator.Play(d.ExitState, d.Layer)
			} else {
				d.Animator.Seek(d.State, d.Layer, completeNormalizedTime)
			}
			d.state.end()
			return true
		}
		if !d.started {
			d.started = true
			return false
		}
		st := d.Animator.State(d.Layer)
		if !st.InTransition && st.NormalizedTime >= completeNormalizedTime {
			d.state.end()
			return true
		}
		return false
	})
}
