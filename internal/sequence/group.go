package sequence

import "time"

// Policy decides whether a Group as a whole can be skipped.
type Policy string

// Skip policies.
const (
	// PolicyAny makes the group skippable when at least one member can be
	// skipped, and then coerces every member skippable.
	PolicyAny Policy = "any"

	// PolicyAll makes the group skippable only when every member can be
	// skipped on its own.
	PolicyAll Policy = "all"
)

// Group is a set of Steps that run each phase together. No member starts
// phase N+1 before every member has finished phase N.
type Group struct {
	name   string
	policy Policy
	steps  []*Step

	skippable bool
	logger    Logger
}

// NewGroup creates a group. Nil steps are empty references; they are pruned
// or treated as already complete depending on Options.RemoveEmptyReferences.
func NewGroup(name string, policy Policy, steps ...*Step) *Group {
	if policy != PolicyAll {
		policy = PolicyAny
	}
	return &Group{
		name:   name,
		policy: policy,
		steps:  steps,
		logger: noopLogger{},
	}
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Policy returns the skip policy.
func (g *Group) Policy() Policy { return g.policy }

// Steps returns the member steps, including empty references that were kept.
func (g *Group) Steps() []*Step { return g.steps }

// Skippable reports the aggregate skippability computed at initialization.
func (g *Group) Skippable() bool { return g.skippable }

// init prunes empty references, computes aggregate skippability and reports
// whether the group still has any valid step.
func (g *Group) init(removeEmpty bool, logger Logger) bool {
	g.logger = logger

	valid := make([]*Step, 0, len(g.steps))
	empty := 0
	for _, s := range g.steps {
		if s == nil {
			empty++
			continue
		}
		s.SetLogger(logger)
		valid = append(valid, s)
	}

	if empty > 0 {
		if removeEmpty {
			logger.Debug("removed empty step references", "group", g.name, "count", empty)
			g.steps = valid
		} else {
			logger.Warn("group contains empty step references", "group", g.name, "count", empty)
		}
	}
	if len(valid) == 0 {
		return false
	}

	switch g.policy {
	case PolicyAll:
		g.skippable = true
		for _, s := range valid {
			if !s.CanSkip() {
				g.skippable = false
				break
			}
		}
	default:
		for _, s := range valid {
			if s.CanSkip() {
				g.skippable = true
				break
			}
		}
		if g.skippable {
			for _, s := range valid {
				s.coerceSkippable()
			}
		}
	}
	return true
}

// Play prepares every member and returns a task that runs the three phases
// with a barrier after each.
func (g *Group) Play() Task {
	return g.play()
}

func (g *Group) play() *groupRun {
	for _, s := range g.steps {
		if s != nil {
			s.Prepare()
		}
	}
	return &groupRun{group: g}
}

// Skip broadcasts a skip to every member when the group is skippable. It
// reports whether any member forwarded the skip to a running driver.
func (g *Group) Skip() bool {
	if !g.skippable {
		return false
	}
	performed := false
	for _, s := range g.steps {
		if s != nil && s.Skip() {
			performed = true
		}
	}
	return performed
}

// groupRun is one execution of a Group.
type groupRun struct {
	group *Group
	stage Phase
	join  *barrier
	done  bool
}

// Advance starts the enter phase on the first call and chains into the next
// phase in the same call whenever a barrier completes.
func (r *groupRun) Advance(dt time.Duration) bool {
	if r.done {
		return true
	}
	if r.join == nil {
		r.begin(PhaseEntering)
		dt = 0
	}

	for {
		if !r.join.Advance(dt) {
			return false
		}
		switch r.stage {
		case PhaseEntering:
			r.begin(PhaseMain)
		case PhaseMain:
			r.begin(PhaseExiting)
		default:
			r.complete()
			return true
		}
		dt = 0
	}
}

// Stage returns the phase the group is executing.
func (r *groupRun) Stage() Phase { return r.stage }

// exit abandons the enter or main phase and starts the exit phase at once.
// An exit already in progress keeps running. It reports whether the run
// has completed.
func (r *groupRun) exit() bool {
	if r.done {
		return true
	}
	if r.stage == PhaseExiting {
		return false
	}

	for _, s := range r.group.steps {
		if s != nil {
			s.interrupt()
		}
	}
	r.begin(PhaseExiting)
	if r.join.Advance(0) {
		r.complete()
		return true
	}
	return false
}

func (r *groupRun) complete() {
	r.join = nil
	r.stage = PhaseReady
	r.done = true
}

func (r *groupRun) begin(p Phase) {
	r.stage = p
	tasks := make([]Task, 0, len(r.group.steps))
	for _, s := range r.group.steps {
		if s == nil {
			r.group.logger.Warn("step reference is empty, skipping phase",
				"group", r.group.name,
				"phase", p.String(),
			)
			continue
		}
		switch p {
		case PhaseEntering:
			tasks = append(tasks, s.EnterTransition())
		case PhaseMain:
			tasks = append(tasks, s.MainPhase())
		case PhaseExiting:
			tasks = append(tasks, s.ExitTransition())
		}
	}
	r.join = newBarrier(tasks)
}
