package schedule

import (
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

// Surface is a display surface: a level target with interaction flags
// that can be shown and hidden.
type Surface interface {
	sequence.LevelTarget
	sequence.InteractionTarget
	sequence.Activatable
}

// Resolver looks up presentation targets by their configured IDs.
//
// Transition returns a fresh instance on every call so steps never share
// transition state.
type Resolver interface {
	Surface(id string) (Surface, bool)
	Animator(id string) (sequence.Animator, bool)
	MediaPlayer(id string) (sequence.MediaPlayer, bool)
	Transition(name string) (sequence.Transition, bool)
}

// Build turns a definition into a ready sequencer. The sequencer is
// initialised but not started.
//
// A step whose surface cannot be resolved becomes an empty reference,
// pruned or kept according to RemoveEmptyReferences. A phase whose target
// cannot be resolved keeps an unresolved driver, which warns and completes
// immediately when run.
func Build(def *Definition, r Resolver, logger Logger) *sequence.Sequencer {
	if logger == nil {
		logger = noopLogger{}
	}
	b := builder{resolver: r, logger: logger}

	groups := make([]*sequence.Group, 0, len(def.Groups))
	for _, gd := range def.Groups {
		steps := make([]*sequence.Step, 0, len(gd.Steps))
		for _, sd := range gd.Steps {
			steps = append(steps, b.step(def.ID, sd))
		}
		groups = append(groups, sequence.NewGroup(gd.Name, gd.Policy, steps...))
	}

	return sequence.New(groups, sequence.Options{
		PlayOnStart:           def.PlayOnStart,
		Skippable:             def.Skippable,
		RemoveEmptyReferences: def.RemoveEmptyReferences,
		Logger:                logger,
	})
}

type builder struct {
	resolver Resolver
	logger   Logger
}

// phaseSlot identifies which phase a PhaseDef configures.
type phaseSlot int

const (
	slotEnter phaseSlot = iota
	slotMain
	slotExit
)

func (b builder) step(sequenceID string, sd StepDef) *sequence.Step {
	var surface Surface
	if sd.Surface != "" {
		s, ok := b.resolver.Surface(sd.Surface)
		if !ok {
			b.logger.Warn("step surface not found, leaving empty reference",
				"sequence_id", sequenceID, "step", sd.Name, "surface", sd.Surface)
			return nil
		}
		surface = s
	}

	cfg := sequence.StepConfig{
		Name:                 sd.Name,
		Enter:                b.driver(sd.Enter, slotEnter, surface),
		Main:                 b.driver(sd.Main, slotMain, surface),
		Exit:                 b.driver(sd.Exit, slotExit, surface),
		Skippable:            sd.Skippable,
		SkippableTransitions: sd.SkippableTransitions,
		ModifyInteractable:   sd.ModifyInteractable,
		ModifyBlocksInput:    sd.ModifyBlocksInput,
	}
	if surface != nil {
		cfg.Interaction = surface
		if sd.ActivateSubject {
			cfg.Subject = surface
		}
	}

	st := sequence.NewStep(cfg)
	st.SetLogger(b.logger)
	return st
}

func (b builder) driver(p PhaseDef, slot phaseSlot, surface Surface) sequence.Driver { //nolint:gocyclo // one case per driver kind
	switch p.Kind {
	case sequence.KindTween:
		d := sequence.NewFade(nil, tweenConfig(p, slot))
		if p.Target == "" {
			if surface != nil {
				d.Target = surface
			}
		} else if s, ok := b.resolver.Surface(p.Target); ok {
			d.Target = s
		}
		return d

	case sequence.KindStateMachine:
		d := sequence.NewStateMachine(nil, p.State, 0)
		d.ExitState = p.ExitState
		if p.Layer != nil {
			d.Layer = *p.Layer
		}
		if a, ok := b.resolver.Animator(p.Target); ok {
			d.Animator = a
		}
		return d

	case sequence.KindMedia:
		d := sequence.NewMedia(nil, p.PrepareOnSetup)
		if m, ok := b.resolver.MediaPlayer(p.Target); ok {
			d.Player = m
		}
		return d

	case sequence.KindWait:
		return sequence.NewWait(time.Duration(p.Duration * float64(time.Second)))

	case sequence.KindCustom:
		dir := sequence.DirectionIn
		if slot == slotExit {
			dir = sequence.DirectionOut
		}
		d := sequence.NewCustom(nil, dir)
		if t, ok := b.resolver.Transition(p.Transition); ok {
			d.Transition = t
		}
		return d

	default:
		return sequence.Noop
	}
}

// tweenConfig applies the default fades: exit phases fade 1 to 0, every
// other phase fades 0 to 1, both over one second.
func tweenConfig(p PhaseDef, slot phaseSlot) sequence.TweenConfig {
	cfg := sequence.FadeIn()
	if slot == slotExit {
		cfg = sequence.FadeOut()
	}

	if p.Mode == sequence.TweenSet {
		cfg.Mode = sequence.TweenSet
		cfg.Value = p.Value
		return cfg
	}

	if len(p.Curve) > 0 {
		cfg.Curve = append(sequence.Curve(nil), p.Curve...)
		cfg.Value = cfg.Curve.End()
	}
	if p.Speed > 0 {
		cfg.Speed = p.Speed
	}
	return cfg
}
