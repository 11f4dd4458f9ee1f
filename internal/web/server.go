// Package web provides the HTTP ingest API.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/encounters/internal/config"
	"github.com/JonMunkholm/encounters/internal/core"
	applog "github.com/JonMunkholm/encounters/internal/web/middleware"
)

// Store is what the API needs from the configured document store.
type Store interface {
	core.DocumentSink
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the ingest API.
type Server struct {
	store   Store
	cfg     *config.Config
	limiter *core.IngestLimiter
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a server writing ingested documents to store.
func NewServer(store Store, cfg *config.Config) *Server {
	s := &Server{
		store:   store,
		cfg:     cfg,
		limiter: core.NewIngestLimiter(cfg.Server.MaxConcurrent, cfg.Server.MaxWaitTime),
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(applog.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/validate", s.handleValidate)
		r.Post("/ingest", s.handleIngest)
	})
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running ingests.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if drainErr := s.limiter.WaitForDrain(ctx); drainErr != nil {
		slog.Warn("ingests still running at shutdown", "active", s.limiter.ActiveCount())
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
