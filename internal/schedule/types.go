package schedule

import (
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

// Definition is a stored presentation sequence: ordered groups of steps
// plus the global sequencer flags.
type Definition struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	Description *string `json:"description,omitempty"`

	// Sequencer flags
	PlayOnStart           bool `json:"play_on_start"`
	Skippable             bool `json:"skippable"`
	RemoveEmptyReferences bool `json:"remove_empty_references"`

	Groups []GroupDef `json:"groups"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupDef is a set of steps whose phases run concurrently.
type GroupDef struct {
	Name   string          `yaml:"name" json:"name"`
	Policy sequence.Policy `yaml:"policy,omitempty" json:"policy,omitempty"`
	Steps  []StepDef       `yaml:"steps" json:"steps"`
}

// StepDef describes one presentation step.
type StepDef struct {
	Name string `yaml:"name" json:"name"`

	// Surface is the ID of the display surface the step shows on. Tween
	// phases without their own target drive it, and it is the subject
	// that is activated and whose interaction is suppressed.
	Surface            string `yaml:"surface,omitempty" json:"surface,omitempty"`
	ActivateSubject    bool   `yaml:"activate_subject,omitempty" json:"activate_subject,omitempty"`
	ModifyInteractable bool   `yaml:"modify_interactable,omitempty" json:"modify_interactable,omitempty"`
	ModifyBlocksInput  bool   `yaml:"modify_blocks_input,omitempty" json:"modify_blocks_input,omitempty"`

	Skippable            bool `yaml:"skippable,omitempty" json:"skippable,omitempty"`
	SkippableTransitions bool `yaml:"skippable_transitions,omitempty" json:"skippable_transitions,omitempty"`

	Enter PhaseDef `yaml:"enter,omitempty" json:"enter"`
	Main  PhaseDef `yaml:"main,omitempty" json:"main"`
	Exit  PhaseDef `yaml:"exit,omitempty" json:"exit"`

	// WaitUntilFinished only applies to flat showfile step lists. A step
	// with false shares a group with the step after it.
	WaitUntilFinished *bool `yaml:"wait_until_finished,omitempty" json:"-"`
}

// PhaseDef configures the driver of one phase. Only the fields relevant to
// Kind are read.
type PhaseDef struct {
	Kind sequence.Kind `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Target is the ID of the surface, animator or media player driven.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`

	// tween
	Mode  sequence.TweenMode  `yaml:"mode,omitempty" json:"mode,omitempty"`
	Value float64             `yaml:"value,omitempty" json:"value,omitempty"`
	Curve []sequence.Keyframe `yaml:"curve,omitempty" json:"curve,omitempty"`
	Speed float64             `yaml:"speed,omitempty" json:"speed,omitempty"`

	// state_machine
	State     string `yaml:"state,omitempty" json:"state,omitempty"`
	ExitState string `yaml:"exit_state,omitempty" json:"exit_state,omitempty"`
	Layer     *int   `yaml:"layer,omitempty" json:"layer,omitempty"`

	// wait, in seconds
	Duration float64 `yaml:"duration,omitempty" json:"duration,omitempty"`

	// media
	PrepareOnSetup bool `yaml:"prepare_on_setup,omitempty" json:"prepare_on_setup,omitempty"`

	// custom
	Transition string `yaml:"transition,omitempty" json:"transition,omitempty"`
}

// Execution records one Play cycle of a sequence.
type Execution struct {
	ID            string          `json:"id"`
	SequenceID    string          `json:"sequence_id"`
	Status        ExecutionStatus `json:"status"`
	TriggeredBy   string          `json:"triggered_by"` // api, mqtt, autoload, cli
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	SkippedGroups []int           `json:"skipped_groups"`
	SkipAll       bool            `json:"skip_all"`
	DurationMS    *int            `json:"duration_ms,omitempty"`
}

// ExecutionStatus is the state of an execution.
type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusSkipped   ExecutionStatus = "skipped"   // Ended early by SkipAll
	StatusCancelled ExecutionStatus = "cancelled" // Unloaded mid-cycle
)

// Trigger sources recorded on executions.
const (
	TriggerAPI      = "api"
	TriggerMQTT     = "mqtt"
	TriggerAutoload = "autoload"
	TriggerCLI      = "cli"
)

// StepCount returns the number of steps across all groups.
func (d *Definition) StepCount() int {
	n := 0
	for _, g := range d.Groups {
		n += len(g.Steps)
	}
	return n
}

// DeepCopy creates an independent copy of the Definition so cached
// values cannot be modified through returned pointers.
func (d *Definition) DeepCopy() *Definition {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Description = cloneStringPtr(d.Description)

	if d.Groups != nil {
		cpy.Groups = make([]GroupDef, len(d.Groups))
		for i, g := range d.Groups {
			cpy.Groups[i] = g
			if g.Steps != nil {
				cpy.Groups[i].Steps = make([]StepDef, len(g.Steps))
				for j, st := range g.Steps {
					cpy.Groups[i].Steps[j] = st.deepCopy()
				}
			}
		}
	}

	return &cpy
}

func (s StepDef) deepCopy() StepDef {
	cpy := s
	cpy.Enter = s.Enter.deepCopy()
	cpy.Main = s.Main.deepCopy()
	cpy.Exit = s.Exit.deepCopy()
	if s.WaitUntilFinished != nil {
		v := *s.WaitUntilFinished
		cpy.WaitUntilFinished = &v
	}
	return cpy
}

func (p PhaseDef) deepCopy() PhaseDef {
	cpy := p
	if p.Curve != nil {
		cpy.Curve = append([]sequence.Keyframe(nil), p.Curve...)
	}
	if p.Layer != nil {
		v := *p.Layer
		cpy.Layer = &v
	}
	return cpy
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
