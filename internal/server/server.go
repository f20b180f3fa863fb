// Package server provides the HTTP query API for RailwayRAG.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MariusDragic/RailwayRAG/internal/config"
	"github.com/MariusDragic/RailwayRAG/internal/search"
	"github.com/MariusDragic/RailwayRAG/internal/storage"
	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

// Server is the HTTP server for the RailwayRAG API.
type Server struct {
	engine  *search.Engine
	store   *storage.Store
	catalog storage.Catalog
	config  config.ServerConfig
	logger  *zap.Logger
	metrics *metrics
	router  chi.Router
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStore adds disk usage of the store directory to the status response.
func WithStore(s *storage.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithCatalog adds the latest recorded build to the status response.
func WithCatalog(c storage.Catalog) Option {
	return func(srv *Server) { srv.catalog = c }
}

// NewServer creates a server answering queries with engine.
func NewServer(engine *search.Engine, cfg config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		config: cfg,
		logger: utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(func() float64 { return float64(engine.Stats().Chunks) })
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/chunks/{position}", s.handleGetChunk)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/reload", s.handleReload)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return r
}

// Handler returns the router serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
