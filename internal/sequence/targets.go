package sequence

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// LevelTarget is anything with a scalar level a tween can drive,
// typically the opacity or brightness of a display surface.
type LevelTarget interface {
	SetLevel(level float64)
}

// Interaction is the input state of a surface.
type Interaction struct {
	Interactable bool `json:"interactable"`
	BlocksInput  bool `json:"blocks_input"`
}

// InteractionTarget exposes a surface's interaction flags so a Step can
// suppress input while it transitions and restore it afterwards.
type InteractionTarget interface {
	Interaction() Interaction
	SetInteraction(Interaction)
}

// Activatable is a visual subject that can be shown and hidden as a whole.
type Activatable interface {
	SetActive(active bool)
}

// AnimatorState is a snapshot of one layer of an animation controller.
type AnimatorState struct {
	State          string  `json:"state"`
	NormalizedTime float64 `json:"normalized_time"`
	InTransition   bool    `json:"in_transition"`
}

// Animator is an external animation state machine.
type Animator interface {
	Play(state string, layer int)
	Seek(state string, layer int, normalizedTime float64)
	State(layer int) AnimatorState
}

// MediaPlayer is an external clip player.
type MediaPlayer interface {
	// Configure disables autoplay and sets looping.
	Configure(loop bool)
	Prepare()
	Prepared() bool
	Play()
	Frame() int64
	Playing() bool
	SeekEnd()
}

// Transition is an externally supplied enter/exit implementation used by
// custom drivers.
type Transition interface {
	In() Task
	Out() Task
}

// Skipper is implemented by custom transitions that can fast-forward.
type Skipper interface {
	Skip()
}
