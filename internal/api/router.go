package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check run by /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/scenes", func(r chi.Router) {
				r.Get("/", s.handleListScenes)
				r.Get("/active", s.handleGetActiveScene)
				r.With(s.requireControl).Put("/active", s.handleSetActiveScene)
				r.Get("/{name}", s.handleGetScene)
			})

			r.Route("/sources/{source}", func(r chi.Router) {
				r.Use(s.requireControl)
				r.Post("/visibility", s.handleSetVisibility)
				r.Post("/flip", s.handleFlip)
				r.Post("/rotate", s.handleRotate)
			})

			r.Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// connectionStatus is the Streamlabs part of the health response.
type connectionStatus struct {
	Connected        bool       `json:"connected"`
	ActiveScene      string     `json:"active_scene,omitempty"`
	ScenesCached     int        `json:"scenes_cached"`
	ConnectedSince   *time.Time `json:"connected_since,omitempty"`
	RequestsSent     uint64     `json:"requests_sent"`
	MessagesReceived uint64     `json:"messages_received"`
	RPCErrors        uint64     `json:"rpc_errors"`
	Timeouts         uint64     `json:"timeouts"`
}

// handleHealth reports the Streamlabs connection and every registered
// dependency check. Any failure answers 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.scenes.Stats()
	conn := connectionStatus{
		Connected:        s.scenes.IsConnected(),
		ActiveScene:      s.scenes.CurrentScene(),
		ScenesCached:     len(s.scenes.Scenes()),
		RequestsSent:     stats.RequestsSent,
		MessagesReceived: stats.MessagesReceived,
		RPCErrors:        stats.RPCErrors,
		Timeouts:         stats.Timeouts,
	}
	if !stats.ConnectedSince.IsZero() {
		since := stats.ConnectedSince.UTC()
		conn.ConnectedSince = &since
	}

	healthy := conn.Connected
	checks := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"streamlabs": conn,
		"checks":     checks,
	})
}
