// Package api provides the HTTP REST API and WebSocket server for the
// sequencer.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-sequencer/internal/audit"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sequencer/internal/playback"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/targets"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultHistoryLimit applies when Deps.HistoryLimit is not positive.
const defaultHistoryLimit = 50

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Defaults  config.SequencerDefaults
	Logger    *logging.Logger
	Runner    *playback.Runner
	Registry  *schedule.Registry
	Directory *targets.Directory // optional: target listing
	MQTT      *mqtt.Client       // optional: health and metrics only
	DB        *database.DB       // optional: pool statistics
	Gatherer  prometheus.Gatherer
	Hub       *Hub             // If set, the server uses this hub instead of creating its own
	Audit     audit.Repository // optional: action trail
	Version   string

	// HistoryLimit is the default page size of execution listings.
	HistoryLimit int
}

// Server is the HTTP API server for the sequencer.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	defaults     config.SequencerDefaults
	logger       *logging.Logger
	runner       *playback.Runner
	registry     *schedule.Registry
	directory    *targets.Directory
	mqtt         *mqtt.Client
	db           *database.DB
	gatherer     prometheus.Gatherer
	version      string
	historyLimit int
	startTime    time.Time

	server   *http.Server
	hub      *Hub
	audit    *audit.Recorder
	auditLog audit.Repository
	tickets  *ticketStore
	cancel   context.CancelFunc // cancels background goroutines on Close()
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("playback runner is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("sequence registry is required")
	}

	limit := deps.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		defaults:     deps.Defaults,
		logger:       deps.Logger,
		runner:       deps.Runner,
		registry:     deps.Registry,
		directory:    deps.Directory,
		mqtt:         deps.MQTT,
		db:           deps.DB,
		gatherer:     deps.Gatherer,
		version:      deps.Version,
		historyLimit: limit,
		startTime:    time.Now(),
		hub:          deps.Hub,
		tickets:      newTicketStore(),
	}
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if deps.Audit != nil {
		s.auditLog = deps.Audit
		s.audit = audit.NewRecorder(deps.Audit, s.logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub lifecycle events are broadcast through.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// It also starts the WebSocket hub and the ticket cleanup loop. The bind
// happens synchronously, so a port already in use is reported here.
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
