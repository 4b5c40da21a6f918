package targets

import (
	"sync"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

// Animator commands.
const (
	cmdPlayState = "play_state"
	cmdSeekState = "seek_state"
)

// animatorReport is the state payload of an animation controller. One
// message describes one layer.
type animatorReport struct {
	Layer int `json:"layer"`
	sequence.AnimatorState
}

// Animator is a remote animation state machine, such as a lighting rig
// controller or a rendered character on a display wall.
type Animator struct {
	pub publisher

	mu        sync.RWMutex
	layers    map[int]sequence.AnimatorState
	commanded map[int]string
}

// NewAnimator creates an animator target.
func NewAnimator(id string, client MQTTClient, logger Logger) *Animator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Animator{
		pub:       publisher{client: client, logger: logger, kind: mqtt.KindAnimator, id: id},
		layers:    make(map[int]sequence.AnimatorState),
		commanded: make(map[int]string),
	}
}

// ID returns the target ID.
func (a *Animator) ID() string { return a.pub.id }

// Play starts a state from its beginning. The cached layer is reset so a
// report for the previous state cannot complete the new one.
func (a *Animator) Play(state string, layer int) {
	a.mu.Lock()
	a.commanded[layer] = state
	a.layers[layer] = sequence.AnimatorState{State: state, InTransition: true}
	a.mu.Unlock()

	a.pub.send(cmdPlayState, map[string]any{"state": state, "layer": layer}, false)
}

// Seek jumps a state to a normalized time.
func (a *Animator) Seek(state string, layer int, normalizedTime float64) {
	a.mu.Lock()
	a.commanded[layer] = state
	a.layers[layer] = sequence.AnimatorState{State: state, NormalizedTime: normalizedTime}
	a.mu.Unlock()

	a.pub.send(cmdSeekState, map[string]any{
		"state":           state,
		"layer":           layer,
		"normalized_time": normalizedTime,
	}, false)
}

// State returns the cached state of a layer.
func (a *Animator) State(layer int) sequence.AnimatorState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.layers[layer]
}

// handleState applies a layer report. While the controller still reports
// a state other than the one last commanded, the layer is held in
// transition.
func (a *Animator) handleState(topic string, payload []byte) error {
	var r animatorReport
	if err := decodeState(topic, payload, &r); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st := r.AnimatorState
	if want, ok := a.commanded[r.Layer]; ok && want != st.State {
		st.InTransition = true
	}
	a.layers[r.Layer] = st
	return nil
}
