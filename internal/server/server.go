// Package server provides the HTTP API for Wordstat.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/komyaka/wordstat/internal/cache"
	"github.com/komyaka/wordstat/internal/config"
	"github.com/komyaka/wordstat/internal/engine"
	"github.com/komyaka/wordstat/internal/ratelimit"
)

// Server is the HTTP server for the Wordstat API.
type Server struct {
	runner     *engine.Runner
	limiter    *ratelimit.Limiter
	cache      *cache.Cache
	configPath string
	logger     *zap.Logger
	server     *http.Server

	cfgMu sync.Mutex
	cfg   *config.Config
}

// NewServer creates a server with the given dependencies. cache may be nil
// when caching is disabled; configPath may be empty when limit changes should
// not be persisted.
func NewServer(
	runner *engine.Runner,
	limiter *ratelimit.Limiter,
	c *cache.Cache,
	cfg *config.Config,
	configPath string,
	logger *zap.Logger,
) *Server {
	return &Server{
		runner:     runner,
		limiter:    limiter,
		cache:      c,
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// SetConfig swaps the active config, used by the config watcher on reload.
func (s *Server) SetConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/api/v1/runs", s.handleStartRun)
		r.Get("/api/v1/runs", s.handleListRuns)
		r.Get("/api/v1/runs/{id}", s.handleGetRun)
		r.Delete("/api/v1/runs/{id}", s.handleCancelRun)
		r.Get("/api/v1/runs/{id}/results", s.handleRunResults)
		r.Get("/api/v1/runs/{id}/export", s.handleRunExport)

		r.Get("/api/v1/limits", s.handleGetLimits)
		r.Put("/api/v1/limits", s.handleUpdateLimits)

		r.Get("/api/v1/cache/stats", s.handleCacheStats)
		r.Post("/api/v1/cache/sweep", s.handleCacheSweep)
		r.Delete("/api/v1/cache", s.handleCacheClear)

		r.Get("/health", s.handleHealth)
	})

	// No timeout here: the event stream stays open for the life of the run.
	r.Get("/api/v1/runs/{id}/events", s.handleRunEvents)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.cfgMu.Lock()
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.cfgMu.Unlock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
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
