package targets

import (
	"math"
	"sync"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

// levelEpsilon is the smallest level change worth a command. The end
// points 0 and 1 are always sent.
const levelEpsilon = 0.005

// Surface commands.
const (
	cmdSetLevel       = "set_level"
	cmdSetActive      = "set_active"
	cmdSetInteraction = "set_interaction"
)

// SurfaceState is the reported state of a display surface.
type SurfaceState struct {
	Level        float64 `json:"level"`
	Active       bool    `json:"active"`
	Interactable bool    `json:"interactable"`
	BlocksInput  bool    `json:"blocks_input"`
}

// Surface is a remote display surface: a panel, screen or overlay whose
// opacity, visibility and input handling the sequencer controls.
type Surface struct {
	pub publisher

	mu    sync.RWMutex
	state SurfaceState
	sent  float64
	dirty bool
}

// NewSurface creates a surface target.
func NewSurface(id string, client MQTTClient, logger Logger) *Surface {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Surface{
		pub:   publisher{client: client, logger: logger, kind: mqtt.KindSurface, id: id},
		state: SurfaceState{Interactable: true, BlocksInput: true},
		sent:  math.NaN(),
	}
}

// ID returns the target ID.
func (s *Surface) ID() string { return s.pub.id }

// State returns the cached state.
func (s *Surface) State() SurfaceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetLevel sets the surface level. Tweens call it every tick, so changes
// smaller than levelEpsilon are cached but not published.
func (s *Surface) SetLevel(level float64) {
	s.mu.Lock()
	s.state.Level = level
	publish := level == 0 || level == 1 || math.IsNaN(s.sent) || math.Abs(level-s.sent) >= levelEpsilon
	if publish {
		s.sent = level
	}
	s.mu.Unlock()

	if publish {
		s.pub.send(cmdSetLevel, map[string]any{"level": level}, true)
	}
}

// SetActive shows or hides the surface.
func (s *Surface) SetActive(active bool) {
	s.mu.Lock()
	s.state.Active = active
	s.mu.Unlock()

	s.pub.send(cmdSetActive, map[string]any{"active": active}, false)
}

// Interaction returns the cached interaction flags.
func (s *Surface) Interaction() sequence.Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sequence.Interaction{Interactable: s.state.Interactable, BlocksInput: s.state.BlocksInput}
}

// SetInteraction sets the interaction flags.
func (s *Surface) SetInteraction(v sequence.Interaction) {
	s.mu.Lock()
	s.state.Interactable = v.Interactable
	s.state.BlocksInput = v.BlocksInput
	s.mu.Unlock()

	s.pub.send(cmdSetInteraction, map[string]any{
		"interactable": v.Interactable,
		"blocks_input": v.BlocksInput,
	}, false)
}

// handleState applies a state report from the device.
func (s *Surface) handleState(topic string, payload []byte) error {
	var st SurfaceState
	if err := decodeState(topic, payload, &st); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}
