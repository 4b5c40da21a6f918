package sequence

import "time"

// Direction selects which half of a custom Transition a driver runs.
type Direction string

// Directions.
const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// CustomDriver hands the phase to an externally supplied Transition.
// It is skippable only when the transition implements Skipper.
type CustomDriver struct {
	Transition Transition
	Direction  Direction

	state runState
}

// NewCustom returns a driver that runs t in direction dir.
func NewCustom(t Transition, dir Direction) *CustomDriver {
	return &CustomDriver{Transition: t, Direction: dir}
}

func (d *CustomDriver) Kind() Kind     { return KindCustom }
func (d *CustomDriver) Prepare()       {}
func (d *CustomDriver) Resolved() bool { return d.Transition != nil }

// Skippable reports whether the delegate can fast-forward.
func (d *CustomDriver) Skippable() bool {
	_, ok := d.Transition.(Skipper)
	return ok
}

// Skip forwards to the delegate while it runs.
func (d *CustomDriver) Skip() {
	if !d.state.running {
		return
	}
	if s, ok := d.Transition.(Skipper); ok {
		s.Skip()
	}
}

// Run starts the delegate's In or Out task.
func (d *CustomDriver) Run() Task {
	var inner Task
	if d.Direction == DirectionOut {
		inner = d.Transition.Out()
	} else {
		inner = d.Transition.In()
	}
	if inner == nil {
		return Done
	}

	d.state.begin()
	return TaskFunc(func(dt time.Duration) bool {
		if inner.Advance(dt) {
			d.state.end()
			return true
		}
		return false
	})
}
