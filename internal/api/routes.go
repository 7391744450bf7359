package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Get("/version", s.handleVersion)
	s.router.Method("GET", "/metrics", s.metrics.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.limiter))
		r.Post(s.config.Server.WebhookPath, s.handleWebhook)

		r.Route("/api/v1/replication/{site}", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleReplicationStatus)
			r.Post("/", s.handleReplicationAction)
		})
	})
}
