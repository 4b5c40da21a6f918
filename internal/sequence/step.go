package sequence

import "time"

// Phase is the lifecycle position of a Step.
type Phase int

// Step phases. A Step returns to PhaseReady after every phase.
const (
	PhaseReady Phase = iota
	PhaseEntering
	PhaseMain
	PhaseExiting
)

// String returns the phase name used in logs and status payloads.
func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseEntering:
		return "entering"
	case PhaseMain:
		return "main"
	case PhaseExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// hidden is the interaction state applied while a Step is not showing.
var hidden = Interaction{Interactable: false, BlocksInput: false}

// StepConfig configures a Step. Nil drivers become Noop.
type StepConfig struct {
	Name string

	Enter Driver
	Main  Driver
	Exit  Driver

	// Skippable allows skips to reach the main driver.
	Skippable bool

	// SkippableTransitions allows skips to reach the enter and exit drivers.
	SkippableTransitions bool

	// Subject is hidden at Prepare, shown when the enter transition starts
	// and hidden again once the exit transition completes.
	Subject Activatable

	// Interaction is suppressed while the Step transitions and restored to
	// the state captured at Prepare afterwards. Only the flags selected by
	// ModifyInteractable and ModifyBlocksInput are touched.
	Interaction        InteractionTarget
	ModifyInteractable bool
	ModifyBlocksInput  bool
}

// Step is one presentation unit with an enter transition, a main phase and
// an exit transition.
type Step struct {
	name string

	enter Driver
	main  Driver
	exit  Driver

	skippable            bool
	skippableTransitions bool

	subject            Activatable
	interaction        InteractionTarget
	modifyInteractable bool
	modifyBlocksInput  bool

	logger Logger

	phase    Phase
	active   Driver
	skipping bool
	prepared bool
	previous Interaction
}

// NewStep creates a Step from cfg.
func NewStep(cfg StepConfig) *Step {
	s := &Step{
		name:                 cfg.Name,
		enter:                orNoop(cfg.Enter),
		main:                 orNoop(cfg.Main),
		exit:                 orNoop(cfg.Exit),
		skippable:            cfg.Skippable,
		skippableTransitions: cfg.SkippableTransitions,
		subject:              cfg.Subject,
		interaction:          cfg.Interaction,
		modifyInteractable:   cfg.ModifyInteractable,
		modifyBlocksInput:    cfg.ModifyBlocksInput,
		logger:               noopLogger{},
	}
	return s
}

func orNoop(d Driver) Driver {
	if d == nil {
		return Noop
	}
	return d
}

// Name returns the step name.
func (s *Step) Name() string { return s.name }

// Phase returns the current phase.
func (s *Step) Phase() Phase { return s.phase }

// Skipping reports whether a skip has been forwarded during the current phase.
func (s *Step) Skipping() bool { return s.skipping }

// CanSkip reports whether the step can be skipped during its main phase on
// its own: the step allows it and the main driver supports it.
func (s *Step) CanSkip() bool {
	return s.skippable && s.main.Skippable()
}

// Drivers returns the enter, main and exit drivers.
func (s *Step) Drivers() (enter, main, exit Driver) {
	return s.enter, s.main, s.exit
}

// SetLogger sets the logger used for missing-target warnings.
func (s *Step) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Prepare performs one-time setup: drivers are prepared, the subject is
// hidden and the current interaction state is captured so it can be
// restored after each transition. Later calls do nothing.
func (s *Step) Prepare() {
	if s.prepared {
		return
	}
	s.prepared = true

	for _, d := range []Driver{s.enter, s.main, s.exit} {
		if d.Resolved() {
			d.Prepare()
		}
	}

	if s.subject != nil {
		s.subject.SetActive(false)
	}
	if s.modifiesInteraction() {
		s.previous = s.interaction.Interaction()
		s.applyInteraction(hidden)
	}
}

// EnterTransition shows the subject and runs the enter driver. Input stays
// suppressed until the driver completes. It returns Done without doing
// anything unless the step is Ready.
func (s *Step) EnterTransition() Task {
	if s.phase != PhaseReady {
		return Done
	}
	s.begin(PhaseEntering, s.enter)

	if s.subject != nil {
		s.subject.SetActive(true)
	}
	s.applyInteraction(hidden)

	return s.track(s.enter, s.restoreInteraction)
}

// MainPhase runs the main driver. It returns Done without doing anything
// unless the step is Ready.
func (s *Step) MainPhase() Task {
	if s.phase != PhaseReady {
		return Done
	}
	s.begin(PhaseMain, s.main)
	return s.track(s.main, nil)
}

// ExitTransition runs the exit driver, then restores the captured
// interaction state and hides the subject. It returns Done without doing
// anything unless the step is Ready.
func (s *Step) ExitTransition() Task {
	if s.phase != PhaseReady {
		return Done
	}
	s.begin(PhaseExiting, s.exit)
	return s.track(s.exit, func() {
		s.restoreInteraction()
		if s.subject != nil {
			s.subject.SetActive(false)
		}
	})
}

// Skip forwards a skip request to the driver of the current phase when both
// the step and the driver allow it. It reports whether the request was
// forwarded.
func (s *Step) Skip() bool {
	if s.phase == PhaseReady || s.active == nil {
		return false
	}
	if !s.skippableIn(s.phase) || !s.active.Skippable() {
		return false
	}
	s.skipping = true
	s.active.Skip()
	return true
}

// interrupt abandons the current phase without running its completion
// steps. The captured interaction state is restored by the next exit.
func (s *Step) interrupt() {
	if s.phase == PhaseReady {
		return
	}
	s.logger.Debug("step phase interrupted", "step", s.name, "phase", s.phase.String())
	s.phase = PhaseReady
	s.active = nil
	s.skipping = false
}

// release abandons any phase in progress and hands the ambient state back:
// the interaction captured at Prepare is restored and the subject hidden.
// A released step prepares again before its next phase.
func (s *Step) release() {
	if !s.prepared {
		return
	}
	s.interrupt()
	s.restoreInteraction()
	if s.subject != nil {
		s.subject.SetActive(false)
	}
	s.prepared = false
}

// coerceSkippable marks the step skippable during its main phase.
func (s *Step) coerceSkippable() {
	s.skippable = true
}

func (s *Step) skippableIn(p Phase) bool {
	if p == PhaseMain {
		return s.skippable
	}
	return s.skippableTransitions
}

func (s *Step) begin(p Phase, d Driver) {
	s.Prepare()
	s.phase = p
	s.active = d
	s.skipping = false
}

// track runs d and wraps its task so the step returns to Ready, after
// running done, once the driver completes.
func (s *Step) track(d Driver, done func()) Task {
	phase := s.phase
	inner := s.run(d, phase)

	return TaskFunc(func(dt time.Duration) bool {
		if !inner.Advance(dt) {
			return false
		}
		if done != nil {
			done()
		}
		if s.phase == phase {
			s.phase = PhaseReady
			s.active = nil
			s.skipping = false
		}
		return true
	})
}

func (s *Step) run(d Driver, p Phase) Task {
	if !d.Resolved() {
		s.logger.Warn("phase target is not referenced, skipping phase",
			"step", s.name,
			"phase", p.String(),
			"driver", string(d.Kind()),
		)
		return Done
	}
	return d.Run()
}

func (s *Step) modifiesInteraction() bool {
	return s.interaction != nil && (s.modifyInteractable || s.modifyBlocksInput)
}

func (s *Step) applyInteraction(v Interaction) {
	if !s.modifiesInteraction() {
		return
	}
	cur := s.interaction.Interaction()
	if s.modifyInteractable {
		cur.Interactable = v.Interactable
	}
	if s.modifyBlocksInput {
		cur.BlocksInput = v.BlocksInput
	}
	s.interaction.SetInteraction(cur)
}

func (s *Step) restoreInteraction() {
	s.applyInteraction(s.previous)
}
