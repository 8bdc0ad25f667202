// Package web serves a loaded record directory over a read-only JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/inventory/internal/asset"
	"github.com/JonMunkholm/inventory/internal/config"
	mw "github.com/JonMunkholm/inventory/internal/web/middleware"
)

// Server is the HTTP server for one record directory.
type Server struct {
	cfg    *config.Config
	loader *asset.Loader
	dir    string
	router *chi.Mux
	server *http.Server
	gate   *reloadGate

	mu   sync.RWMutex
	snap *snapshot
}

// snapshot is one complete load of the directory. It is never modified
// after it is published.
type snapshot struct {
	result   *asset.LoadResult
	index    map[string]int // identity -> position in result.Records
	loadedAt time.Time
}

func newSnapshot(result *asset.LoadResult) *snapshot {
	index := make(map[string]int, len(result.Records))
	for i, l := range result.Records {
		index[l.Identity] = i
	}
	return &snapshot{result: result, index: index, loadedAt: time.Now()}
}

// NewServer creates a Server for dir. Call Reload before serving.
func NewServer(cfg *config.Config, loader *asset.Loader, dir string) *Server {
	s := &Server{
		cfg:    cfg,
		loader: loader,
		dir:    dir,
		router: chi.NewRouter(),
		gate:   newReloadGate(reloadWait),
		snap:   newSnapshot(&asset.LoadResult{Dir: asset.NormalizeDir(dir)}),
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

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerSecond, s.cfg.Rate.Burst)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/assets", s.handleListAssets)
		r.Get("/assets/{identity}", s.handleGetAsset)
		r.Get("/assets/{identity}/yaml", s.handleGetAssetYAML)
		r.Get("/errors", s.handleListErrors)

		r.With(mw.APIKeyAuth(&s.cfg.Security)).Post("/reload", s.handleReload)
	})
}

// Reload reads the directory again and swaps in the new snapshot. On
// failure the previous snapshot stays in place. Reloads never overlap.
func (s *Server) Reload(ctx context.Context) (*asset.LoadResult, error) {
	if err := s.gate.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.gate.release()

	result, err := s.loader.Load(ctx, s.dir)
	if err != nil {
		return nil, err
	}

	snap := newSnapshot(result)
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	for _, e := range result.Errors {
		slog.Warn("record not loaded", "file", e.File, "error", e.Err)
	}
	slog.Info("records loaded",
		"dir", result.Dir,
		"records", len(result.Records),
		"errors", len(result.Errors),
	)
	return result, nil
}

func (s *Server) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Start listens until Shutdown is called. It returns nil after a clean
// shutdown, including one that happened before Start.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr, "dir", s.dir)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return nil
}

// Shutdown gracefully stops the server, then waits for a running reload.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	if s.gate.busy() {
		slog.Info("waiting for reload to complete")
	}
	if derr := s.gate.waitForDrain(ctx); derr != nil {
		slog.Warn("reload did not complete in time", "error", derr)
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
