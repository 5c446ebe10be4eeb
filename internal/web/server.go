// Package web serves the REST API in front of the orchestration service.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/jsvoboda/face-auth/internal/store"
	"github.com/jsvoboda/face-auth/internal/web/handlers"
	"github.com/jsvoboda/face-auth/internal/web/middleware"
)

// Server represents the web server.
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	service    *auth.Service
	enrolls    store.Reader
	index      handlers.IndexStats
	instanceID string
}

// NewServer creates a new web server. index may be nil when the backend has
// no in-memory HNSW index.
func NewServer(cfg *config.Config, service *auth.Service, enrolls store.Reader, index handlers.IndexStats) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		router:     r,
		service:    service,
		enrolls:    enrolls,
		index:      index,
		instanceID: uuid.New().String(),
	}

	// Set up middleware stack.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // uploads plus provider round-trips
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
