package playback

import "errors"

// Domain errors for the playback runner.
var (
	// ErrNotLoaded is returned when no loaded sequence matches a reference.
	ErrNotLoaded = errors.New("playback: sequence not loaded")

	// ErrAlreadyRunning is returned by Play while a cycle is in progress.
	ErrAlreadyRunning = errors.New("playback: sequence already running")

	// ErrNotRunning is returned by Skip and SkipAll outside a cycle.
	ErrNotRunning = errors.New("playback: sequence not running")

	// ErrNotSkippable is returned when skipping is disabled for a sequence.
	ErrNotSkippable = errors.New("playback: sequence not skippable")

	// ErrStopped is returned once the runner loop has exited.
	ErrStopped = errors.New("playback: runner stopped")

	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("playback: runner already started")

	// ErrInvalidCommand is returned for malformed MQTT commands.
	ErrInvalidCommand = errors.New("playback: invalid command")
)
