package audit

import (
	"context"
	"time"
)

// recordTimeout bounds one insert so a locked database cannot stall a
// request.
const recordTimeout = 2 * time.Second

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder writes entries without failing the caller. A nil *Recorder
// records nothing.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a Recorder over repo.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record stores e, logging a failure.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &e); err != nil && r.logger != nil {
		r.logger.Warn("failed to record audit entry", "action", e.Action, "entity_id", e.EntityID, "error", err)
	}
}

// RecordCommand records a remote sequencer command. It satisfies
// playback.CommandRecorder.
func (r *Recorder) RecordCommand(ctx context.Context, action, ref string, cmdErr error) {
	e := Entry{
		Action:     action,
		EntityType: EntitySequence,
		EntityID:   ref,
		Source:     SourceMQTT,
	}
	if cmdErr != nil {
		e.Details = map[string]any{"error": cmdErr.Error()}
	}
	r.Record(ctx, e)
}
