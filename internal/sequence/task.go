package sequence

import "time"

// Task is a unit of cooperative work advanced once per tick.
//
// The first call to Advance starts the task and always receives a zero
// delta. Later calls receive the time elapsed since the previous tick.
// Advance returns true once the task has completed, after which it is never
// advanced again.
type Task interface {
	Advance(dt time.Duration) bool
}

// TaskFunc adapts an ordinary function to the Task interface.
type TaskFunc func(dt time.Duration) bool

// Advance calls f(dt).
func (f TaskFunc) Advance(dt time.Duration) bool {
	return f(dt)
}

// Done is a task that is already complete.
var Done Task = TaskFunc(func(time.Duration) bool { return true })

// barrier joins a set of concurrently started tasks. It completes once
// every member has signalled completion; members that finish early are no
// longer advanced.
type barrier struct {
	tasks     []Task
	completed []bool
	remaining int
}

func newBarrier(tasks []Task) *barrier {
	return &barrier{
		tasks:     tasks,
		completed: make([]bool, len(tasks)),
		remaining: len(tasks),
	}
}

// Advance advances every member that has not completed yet.
func (b *barrier) Advance(dt time.Duration) bool {
	for i, t := range b.tasks {
		if b.completed[i] {
			continue
		}
		if t.Advance(dt) {
			b.completed[i] = true
			b.remaining--
		}
	}
	return b.remaining == 0
}

// Pending returns the number of members still running.
func (b *barrier) Pending() int {
	return b.remaining
}
