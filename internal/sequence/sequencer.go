package sequence

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Wait when the sequencer is closed before the
// cycle finishes.
var ErrClosed = errors.New("sequence: sequencer closed")

// Options are the global flags of a Sequencer.
type Options struct {
	// PlayOnStart makes Start begin a Play cycle.
	PlayOnStart bool

	// Skippable is the master switch for Skip and SkipAll.
	Skippable bool

	// RemoveEmptyReferences prunes nil steps during initialization.
	RemoveEmptyReferences bool

	// Logger receives warnings from the scheduler. Nil disables logging.
	Logger Logger
}

// DefaultOptions returns options with skipping and pruning enabled.
func DefaultOptions() Options {
	return Options{
		Skippable:             true,
		RemoveEmptyReferences: true,
	}
}

// Status is a point-in-time view of a Sequencer.
type Status struct {
	Running    bool   `json:"running"`
	Finished   bool   `json:"finished"`
	GroupIndex int    `json:"group_index"`
	GroupCount int    `json:"group_count"`
	Group      string `json:"group,omitempty"`
	Phase      string `json:"phase,omitempty"`
}

// Sequencer plays an ordered list of Groups one after another.
//
// It is driven by Tick and is not safe for concurrent use; only Done and
// Wait may be called from other goroutines.
type Sequencer struct {
	groups []*Group
	opts   Options
	logger Logger

	cursor   int
	running  bool
	finished bool
	closed   bool
	run      *groupRun

	listeners listenerSet

	doneMu sync.Mutex
	done   chan struct{}
}

// New creates a Sequencer and performs initialization: empty step references
// are pruned when configured, groups left without steps are dropped, group
// skippability is computed and every step is prepared.
func New(groups []*Group, opts Options) *Sequencer {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Sequencer{
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
	}

	for i, g := range groups {
		if g == nil {
			logger.Debug("dropped empty group reference", "index", i)
			continue
		}
		if !g.init(opts.RemoveEmptyReferences, logger) {
			logger.Debug("dropped group without steps", "group", g.name, "index", i)
			continue
		}
		s.groups = append(s.groups, g)
	}

	for _, g := range s.groups {
		for _, st := range g.steps {
			if st != nil {
				st.Prepare()
			}
		}
	}

	return s
}

// Start applies PlayOnStart. Call it once listeners are subscribed.
func (s *Sequencer) Start() {
	if s.opts.PlayOnStart {
		s.Play()
	}
}

// Groups returns the groups that survived initialization.
func (s *Sequencer) Groups() []*Group { return s.groups }

// Running reports whether a Play cycle is in progress.
func (s *Sequencer) Running() bool { return s.running }

// Finished reports whether the last Play cycle ran to completion.
func (s *Sequencer) Finished() bool { return s.finished }

// Cursor returns the index of the group currently executing. It equals the
// number of groups once the schedule has ended or SkipAll was requested.
func (s *Sequencer) Cursor() int { return s.cursor }

// Status returns a snapshot of the sequencer state.
func (s *Sequencer) Status() Status {
	st := Status{
		Running:    s.running,
		Finished:   s.finished,
		GroupIndex: s.cursor,
		GroupCount: len(s.groups),
	}
	if s.run != nil {
		st.Group = s.run.group.name
		st.Phase = s.run.stage.String()
	}
	return st
}

// Subscribe attaches a lifecycle listener.
func (s *Sequencer) Subscribe(l Listener) *Subscription {
	return s.listeners.add(l)
}

// ListenerCount returns the number of attached listeners.
func (s *Sequencer) ListenerCount() int {
	return s.listeners.len()
}

// Play starts a cycle from the first group. It does nothing while a cycle is
// running. The first group starts before Play returns; the rest of the work
// proceeds on later ticks.
func (s *Sequencer) Play() {
	if s.running || s.closed {
		return
	}
	s.running = true
	s.cursor = 0
	s.run = nil
	s.rearm()

	s.listeners.started()
	s.advance(0)
}

// Tick advances the running cycle by dt.
func (s *Sequencer) Tick(dt time.Duration) {
	if !s.running {
		return
	}
	s.advance(dt)
}

// Skip asks the current group to fast-forward. It does nothing unless a
// cycle is running and skipping is enabled. OnSkipped fires with the group
// index when the group performed the skip.
func (s *Sequencer) Skip() {
	if !s.running || !s.opts.Skippable {
		return
	}
	if s.run == nil || s.cursor >= len(s.groups) {
		return
	}
	if s.groups[s.cursor].Skip() {
		s.logger.Debug("group skipped", "group", s.groups[s.cursor].name, "index", s.cursor)
		s.listeners.skipped(s.cursor)
	}
}

// SkipAll abandons the enter or main phase of the current group, runs its
// exit transitions and then finishes without starting any further group.
func (s *Sequencer) SkipAll() {
	if !s.running || !s.opts.Skippable {
		return
	}
	s.cursor = len(s.groups)
	if s.run != nil && !s.run.exit() {
		return
	}
	s.run = nil
	s.finish()
}

// Done returns a channel closed when the current cycle finishes. Before the
// first Play it refers to the first cycle; after a cycle finishes it stays
// closed until the next Play.
func (s *Sequencer) Done() <-chan struct{} {
	s.doneMu.Lock()
	defer s.doneMu.Unlock()
	return s.done
}

// Wait blocks until the current cycle finishes, the sequencer is closed or
// ctx is done.
func (s *Sequencer) Wait(ctx context.Context) error {
	select {
	case <-s.Done():
		s.doneMu.Lock()
		closed := s.closed && !s.finished
		s.doneMu.Unlock()
		if closed {
			return ErrClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTask returns a task that completes once the sequencer has finished.
func (s *Sequencer) WaitTask() Task {
	return TaskFunc(func(time.Duration) bool {
		return s.finished || s.closed
	})
}

// Close tears the sequencer down: listeners are detached, in-flight work is
// abandoned, every step gives back the interaction state it captured and
// waiters are released.
func (s *Sequencer) Close() {
	if s.closed {
		return
	}
	s.listeners.clear()
	s.run = nil
	s.running = false
	for _, g := range s.groups {
		for _, st := range g.steps {
			if st != nil {
				st.release()
			}
		}
	}

	s.doneMu.Lock()
	s.closed = true
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.doneMu.Unlock()
}

// advance runs groups in order until one suspends or the schedule ends.
func (s *Sequencer) advance(dt time.Duration) {
	for s.running {
		if s.run == nil {
			if s.cursor >= len(s.groups) {
				s.finish()
				return
			}
			s.run = s.groups[s.cursor].play()
			dt = 0
		}
		if !s.run.Advance(dt) {
			return
		}
		s.run = nil
		if s.cursor < len(s.groups) {
			s.cursor++
		}
	}
}

func (s *Sequencer) finish() {
	if !s.running {
		return
	}
	s.running = false
	s.run = nil

	s.doneMu.Lock()
	s.finished = true
	close(s.done)
	s.doneMu.Unlock()

	s.listeners.finished()
}

// rearm clears the finished flag and replaces the done channel if the
// previous cycle closed it.
func (s *Sequencer) rearm() {
	s.doneMu.Lock()
	defer s.doneMu.Unlock()
	s.finished = false
	select {
	case <-s.done:
		s.done = make(chan struct{})
	default:
	}
}
