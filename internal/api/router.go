package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-sequencer/internal/auth"
	"github.com/nerrad567/gray-logic-sequencer/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus exposition (no auth, scraped on the local network)
	r.Handle("/metrics", s.prometheusHandler())

	// Booth panel (static; the page authenticates against /api/v1)
	r.Get("/panel", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/panel/", http.StatusMovedPermanently)
	})
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.cfg.PanelDir)))

	read := s.requirePermission(auth.PermSequenceRead)
	control := s.requirePermission(auth.PermSequenceControl)
	manage := s.requirePermission(auth.PermSequenceManage)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.With(read).Post("/auth/ws-ticket", s.handleWSTicket)

			r.With(read).Get("/targets", s.handleListTargets)
			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAudit)

			r.Route("/sequences", func(r chi.Router) {
				r.With(read).Get("/", s.handleListSequences)
				r.With(manage).Post("/", s.handleCreateSequence)
				r.With(read).Get("/loaded", s.handleListLoaded)

				r.Route("/{id}", func(r chi.Router) {
					r.With(read).Get("/", s.handleGetSequence)
					r.With(manage).Patch("/", s.handleUpdateSequence)
					r.With(manage).Delete("/", s.handleDeleteSequence)

					r.With(control).Post("/load", s.handleLoadSequence)
					r.With(control).Post("/unload", s.handleUnloadSequence)
					r.With(control).Post("/play", s.handlePlaySequence)
					r.With(control).Post("/skip", s.handleSkipSequence)
					r.With(control).Post("/skip-all", s.handleSkipAllSequence)

					r.With(read).Get("/status", s.handleSequenceStatus)
					r.With(read).Get("/executions", s.handleListExecutions)
				})
			})
		})
	})

	return r
}

// prometheusHandler serves the configured gatherer, or the default
// registry when none was given.
func (s *Server) prometheusHandler() http.Handler {
	if s.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{s},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// promErrorLogger adapts the server logger to promhttp.Logger.
type promErrorLogger struct{ s *Server }

func (l promErrorLogger) Println(v ...any) {
	l.s.logger.Warn("prometheus exposition error", "error", v)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = err.Error()
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(r.Context()); err != nil {
			checks["mqtt"] = err.Error()
			status = "degraded"
		} else {
			checks["mqtt"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
