package targets

import (
	"sync"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
)

// Media commands.
const (
	cmdConfigure = "configure"
	cmdPrepare   = "prepare"
	cmdPlay      = "play"
	cmdSeekEnd   = "seek_end"
)

// MediaState is the reported state of a media player.
type MediaState struct {
	Prepared bool  `json:"prepared"`
	Playing  bool  `json:"playing"`
	Frame    int64 `json:"frame"`
}

// MediaPlayer is a remote clip player.
type MediaPlayer struct {
	pub publisher

	mu    sync.RWMutex
	state MediaState
}

// NewMediaPlayer creates a media target.
func NewMediaPlayer(id string, client MQTTClient, logger Logger) *MediaPlayer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MediaPlayer{
		pub: publisher{client: client, logger: logger, kind: mqtt.KindMedia, id: id},
	}
}

// ID returns the target ID.
func (m *MediaPlayer) ID() string { return m.pub.id }

// Configure disables autoplay and sets looping.
func (m *MediaPlayer) Configure(loop bool) {
	m.pub.send(cmdConfigure, map[string]any{"autoplay": false, "loop": loop}, false)
}

// Prepare asks the player to preload its clip. Prepared reports false
// until the player confirms.
func (m *MediaPlayer) Prepare() {
	m.mu.Lock()
	m.state.Prepared = false
	m.mu.Unlock()

	m.pub.send(cmdPrepare, nil, false)
}

// Prepared reports whether the clip is ready to play.
func (m *MediaPlayer) Prepared() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Prepared
}

// Play starts the clip. The cached frame is reset so the end of a
// previous run is not mistaken for the end of this one.
func (m *MediaPlayer) Play() {
	m.mu.Lock()
	m.state.Playing = true
	m.state.Frame = 0
	m.mu.Unlock()

	m.pub.send(cmdPlay, nil, false)
}

// Frame returns the last reported frame.
func (m *MediaPlayer) Frame() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Frame
}

// Playing reports whether the clip is playing.
func (m *MediaPlayer) Playing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Playing
}

// SeekEnd jumps to the last frame and stops.
func (m *MediaPlayer) SeekEnd() {
	m.mu.Lock()
	m.state.Playing = false
	m.mu.Unlock()

	m.pub.send(cmdSeekEnd, nil, false)
}

// State returns the cached state.
func (m *MediaPlayer) State() MediaState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *MediaPlayer) handleState(topic string, payload []byte) error {
	var st MediaState
	if err := decodeState(topic, payload, &st); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	return nil
}
