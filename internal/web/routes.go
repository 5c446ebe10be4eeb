package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/jsvoboda/face-auth/internal/web/handlers"
	"github.com/jsvoboda/face-auth/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	enrollHandler := handlers.NewEnrollHandler(s.service, s.config)
	verifyHandler := handlers.NewVerifyHandler(s.service, s.config)
	identifyHandler := handlers.NewIdentifyHandler(s.service, s.config)
	usersHandler := handlers.NewUsersHandler(s.service)
	statsHandler := handlers.NewStatsHandler(s.enrolls, s.index, s.config, s.instanceID)
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check (no auth required).
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(s.config.Web.APIToken))

			r.Post("/enroll", enrollHandler.Enroll)
			r.Post("/verify", verifyHandler.Verify)
			r.Post("/identify", identifyHandler.Identify)

			r.Get("/users", usersHandler.List)
			r.Get("/users/{id}", usersHandler.Get)
			r.Delete("/users/{id}", usersHandler.Delete)

			r.Get("/stats", statsHandler.Get)
			r.Get("/config", configHandler.Get)
		})
	})
}
