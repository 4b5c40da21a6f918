package playback

import (
	"context"

	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
)

// Lookup resolves a definition by ID or slug. schedule.Registry satisfies
// it.
type Lookup interface {
	Lookup(ctx context.Context, ref string) (*schedule.Definition, error)
}

// Autoload loads each referenced definition. Missing or failing
// definitions are logged and skipped so one bad entry does not hold up
// the rest. It returns the number loaded.
func (r *Runner) Autoload(ctx context.Context, defs Lookup, refs []string) int {
	loaded := 0
	for _, ref := range refs {
		def, err := defs.Lookup(ctx, ref)
		if err != nil {
			r.logger.Warn("autoload: definition not found", "ref", ref, "error", err)
			continue
		}
		if err := r.Load(ctx, def, schedule.TriggerAutoload); err != nil {
			r.logger.Error("autoload: failed to load sequence", "ref", ref, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		loaded++
	}
	if len(refs) > 0 {
		r.logger.Info("autoload complete", "requested", len(refs), "loaded", loaded)
	}
	return loaded
}
