package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/neogend-core/internal/auth"
)

// healthTimeout bounds the dependency probes run by /health.
const healthTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Credential endpoints that authenticate by other means.
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)

		// Session channel (auth via ticket, validated in handler)
		r.Get(s.wsPath(), s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Post("/auth/sessions/revoke", s.handleRevokeOwnSessions)
			r.Post("/auth/password", s.handleChangePassword)

			r.Get("/users/me", s.handleMe)

			r.Route("/admin", func(r chi.Router) {
				r.Route("/accounts", func(r chi.Router) {
					r.With(s.requireRank(auth.RankMod)).Get("/", s.handleListAccounts)
					r.With(s.requireRank(auth.RankAdmin)).Post("/", s.handleCreateAccount)

					r.Route("/{id}", func(r chi.Router) {
						r.Use(s.requireRank(auth.RankMod))
						r.Get("/", s.handleGetAccount)
						r.Delete("/", s.handleDeleteAccount)
						r.Put("/privilege", s.handleChangePrivilege)
						r.Post("/disconnect", s.handleDisconnectAccount)
						r.Post("/password-reset", s.handleResetPassword)
					})
				})

				r.With(s.requireRank(auth.RankOwner)).Post("/sessions/disconnect-all", s.handleDisconnectAll)
				r.With(s.requireRank(auth.RankAdmin)).Get("/audit", s.handleListAuditLogs)
				r.With(s.requireRank(auth.RankAdmin)).Get("/metrics", s.handleMetrics)
			})
		})
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports the server and its dependencies. A failing database
// turns the response into 503; optional clients only degrade it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			body["database"] = "unavailable"
			body["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		body["mqtt"] = probe(ctx, s.mqtt)
	}
	if s.influx != nil {
		body["influxdb"] = probe(ctx, s.influx)
	}

	writeJSON(w, status, body)
}

func probe(ctx context.Context, c HealthChecker) string {
	if err := c.HealthCheck(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}
