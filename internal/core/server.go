// Package core provides the API chassis for the raincast service.
// It creates a chi router and enforces cross-cutting concerns -- panic
// recovery, request correlation, logging, and error handling -- before
// requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"raincast/internal/config"
)

// Server encapsulates the dependencies for the raincast API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config *config.Config
	Logger *slog.Logger

	// HealthProbes are run by the health endpoint. Registered by main.
	HealthProbes []HealthProbe

	// RouteRegistrars are invoked by MountRoutes to attach domain handler
	// routes. This indirection avoids import cycles between core and
	// handler packages.
	RouteRegistrars []func(r chi.Router)

	router *chi.Mux
}

// NewServer initializes the server chassis. The caller is responsible for
// registering routes (via MountRoutes) after construction; this separation
// allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
