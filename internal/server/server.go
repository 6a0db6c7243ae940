// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	"github.com/KaramelBytes/microlens-cli/internal/logging"
	"github.com/KaramelBytes/microlens-cli/internal/table"
)

// Config holds the HTTP adapter settings.
type Config struct {
	Port           int
	RateLimit      float64 // analyze requests per second; <= 0 disables limiting
	RateBurst      int
	CacheSize      int // <= 0 disables the report cache
	MaxUploadMB    int
	AllowedOrigins []string
	Schema         table.Schema
	Fidelity       analysis.Fidelity
}

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *logging.Logger
	config     Config
}

// New creates a new API server around router.
func New(cfg Config, log *logging.Logger, router http.Handler) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: log,
		config: cfg,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.WithField("port", s.config.Port).Info("starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
