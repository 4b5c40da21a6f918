package sequence

import "time"

type mediaStage int

const (
	mediaPreparing mediaStage = iota
	mediaPlaying
)

// MediaDriver prepares a clip, plays it and waits for the end of stream.
// On skip it seeks the player to the end of the clip.
type MediaDriver struct {
	Player MediaPlayer

	// PrepareOnSetup starts preparing the clip during Prepare rather than
	// when the phase begins.
	PrepareOnSetup bool

	state runState
	stage mediaStage
}

// NewMedia returns a media playback driver.
func NewMedia(p MediaPlayer, prepareOnSetup bool) *MediaDriver {
	return &MediaDriver{Player: p, PrepareOnSetup: prepareOnSetup}
}

func (d *MediaDriver) Kind() Kind      { return KindMedia }
func (d *MediaDriver) Skippable() bool { return true }
func (d *MediaDriver) Resolved() bool  { return d.Player != nil }

// Prepare disables autoplay and looping and optionally preloads the clip.
func (d *MediaDriver) Prepare() {
	if d.Player == nil {
		return
	}
	d.Player.Configure(false)
	if d.PrepareOnSetup {
		d.Player.Prepare()
	}
}

// Skip seeks to the end of the clip at the next tick.
func (d *MediaDriver) Skip() { d.state.requestSkip() }

// Run starts preparation if needed and returns a task that plays the clip
// once prepared and completes when playback stops after the first frame.
func (d *MediaDriver) Run() Task {
	d.state.begin()
	d.stage = mediaPreparing
	if !d.Player.Prepared() {
		d.Player.Prepare()
	}

	return TaskFunc(func(time.Duration) bool {
		if d.state.skipped {
			if d.stage != mediaPreparing {
				d.Player.SeekEnd()
			}
			d.state.end()
			return true
		}

		if d.stage == mediaPreparing {
			if !d.Player.Prepared() {
				return false
			}
			d.Player.Play()
			d.stage = mediaPlaying
			return false
		}

		if d.Player.Frame() == 0 || d.Player.Playing() {
			return false
		}
		d.state.end()
		return true
	})
}
