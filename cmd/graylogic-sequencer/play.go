package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sequencer/internal/playback"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/targets"
)

func newPlayCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "play <showfile>",
		Short: "Play a showfile once against the configured targets",
		Long: `Connects to MQTT, plays one cycle of the showfile and exits when it
finishes. Interrupting cancels the cycle. Nothing is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			def, err := schedule.ParseFile(args[0], parseOptions(cfg.Sequencer.Defaults))
			if err != nil {
				return err
			}
			if err := schedule.Validate(def); err != nil {
				return err
			}
			def.ID = schedule.GenerateID()

			log := logging.New(cfg.Logging, version)
			client, err := mqtt.Connect(cmd.Context(), cfg.MQTT)
			if err != nil {
				return fmt.Errorf("connecting to MQTT: %w", err)
			}
			defer client.Close() //nolint:errcheck // Exiting anyway
			client.SetLogger(log.Component("mqtt"))

			dir, err := targets.NewDirectory(client, cfg.Sequencer, log.Component("targets"))
			if err != nil {
				return fmt.Errorf("creating targets: %w", err)
			}
			if err := dir.Subscribe(); err != nil {
				return fmt.Errorf("subscribing to target state: %w", err)
			}

			return playOnce(cmd.Context(), cmd.OutOrStdout(), def, playback.Options{
				TickInterval: cfg.Sequencer.TickInterval,
				Resolver:     dir,
				Logger:       log.Component("playback"),
			})
		},
	}
}

// playOnce runs one cycle of def on a private runner, printing lifecycle
// events to w.
func playOnce(ctx context.Context, w io.Writer, def *schedule.Definition, opts playback.Options) error {
	opts.Sinks = append(opts.Sinks, &eventPrinter{w: w})
	runner := playback.NewRunner(opts)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return runner.Run(gctx) })

	g.Go(func() error {
		defer stop()
		if err := runner.Load(gctx, def, schedule.TriggerCLI); err != nil {
			return err
		}
		if _, err := runner.Play(gctx, def.ID, schedule.TriggerCLI); err != nil &&
			!errors.Is(err, playback.ErrAlreadyRunning) { // play_on_start already began the cycle
			return err
		}
		return runner.Wait(gctx, def.ID)
	})

	// An interrupt cancels the cycle; the printer has already reported it.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// eventPrinter writes one line per lifecycle event.
type eventPrinter struct {
	w  io.Writer
	mu sync.Mutex
}

// Handle prints e.
func (p *eventPrinter) Handle(e playback.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := e.Timestamp.Format(time.TimeOnly)
	switch e.Type {
	case playback.EventStarted:
		fmt.Fprintf(p.w, "%s started %q\n", ts, e.SequenceName)
	case playback.EventSkipped:
		fmt.Fprintf(p.w, "%s skipped group %d (%s)\n", ts, e.GroupIndex, e.Group)
	case playback.EventFinished, playback.EventCancelled:
		fmt.Fprintf(p.w, "%s %s in %s\n", ts, e.Status, time.Duration(e.DurationMS)*time.Millisecond)
	}
}
