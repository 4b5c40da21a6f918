package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-sequencer/internal/api"
	"github.com/nerrad567/gray-logic-sequencer/internal/audit"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sequencer/internal/playback"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/targets"
	"github.com/nerrad567/gray-logic-sequencer/migrations"
)

func newServeCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sequencer service",
		Long:  `Connects to MQTT, loads the autoload sequences and serves the REST/WebSocket API until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath())
		},
	}
}

// run is the service, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to config.yaml
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Sequencer",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	repo := schedule.NewSQLiteRepository(db.DB)
	registry := schedule.NewRegistry(repo)
	registry.SetLogger(log.Component("schedule"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading sequence registry: %w", refreshErr)
	}
	log.Info("sequence registry initialised", "sequences", registry.Count())

	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	directory, err := targets.NewDirectory(mqttClient, cfg.Sequencer, log.Component("targets"))
	if err != nil {
		return fmt.Errorf("creating targets: %w", err)
	}
	if subErr := directory.Subscribe(); subErr != nil {
		return fmt.Errorf("subscribing to target state: %w", subErr)
	}
	log.Info("targets ready",
		"targets", len(directory.Targets()),
		"transitions", len(directory.TransitionNames()),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := playback.NewMetrics(reg)
	if err != nil {
		return err
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	sinks := []playback.Sink{playback.HubSink{Hub: hub}, metrics}
	if cfg.Sequencer.PublishEvents {
		sinks = append(sinks, playback.MQTTSink{Client: mqttClient, Logger: log.Component("events")})
	}
	if influxClient != nil {
		sinks = append(sinks, playback.InfluxSink{Writer: influxClient})
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)

	runner := playback.NewRunner(playback.Options{
		TickInterval: cfg.Sequencer.TickInterval,
		HistoryLimit: cfg.Sequencer.HistoryLimit,
		Resolver:     directory,
		Executions:   repo,
		Sinks:        sinks,
		Commands:     audit.NewRecorder(auditRepo, log.Component("audit")),
		Logger:       log.Component("playback"),
	})

	srv, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Defaults:     cfg.Sequencer.Defaults,
		Logger:       log.Component("api"),
		Runner:       runner,
		Registry:     registry,
		Directory:    directory,
		MQTT:         mqttClient,
		DB:           db,
		Gatherer:     reg,
		Hub:          hub,
		Audit:        auditRepo,
		Version:      version,
		HistoryLimit: cfg.Sequencer.HistoryLimit,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runner.Run(gctx)
	})

	g.Go(func() error {
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		<-gctx.Done()
		return srv.Close()
	})

	// Remote commands and autoload go through the runner loop, which is
	// now running.
	if err := runner.SubscribeCommands(mqttClient); err != nil {
		log.Error("sequencer commands unavailable", "error", err)
	}
	runner.Autoload(gctx, registry, cfg.Sequencer.Autoload)

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil {
		return err
	}

	// Deferred Close() calls run in reverse order: InfluxDB, MQTT, database.
	log.Info("Gray Logic Sequencer stopped")
	return nil
}

// openDatabase opens the configured SQLite database and applies
// migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
