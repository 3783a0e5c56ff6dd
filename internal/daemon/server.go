// Package daemon serves problems and evaluations over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/felixgeelhaar/drillpad/internal/app"
	"github.com/felixgeelhaar/drillpad/internal/domain"
)

// Version is reported by the health endpoint
var Version = "dev"

// Server represents the drillpad daemon HTTP server
type Server struct {
	app    *app.App
	server *http.Server
	router *http.ServeMux
	logger *slog.Logger

	limiter  ratelimit.RateLimiter
	bulkhead bulkhead.Bulkhead[struct{}]

	// requests in flight, cancellable through DELETE /v1/runs/{id}
	runs *xsync.MapOf[uuid.UUID, *trackedRun]
}

type trackedRun struct {
	run    *domain.Run
	cancel context.CancelFunc
}

// NewServer creates a new daemon server around a wired application
func NewServer(a *app.App) *Server {
	cfg := a.Config
	s := &Server{
		app:    a,
		router: http.NewServeMux(),
		logger: a.Logger,
		runs:   xsync.NewMapOf[uuid.UUID, *trackedRun](),
	}

	rate := max(cfg.Limits.RequestsPerSecond, 1)
	burst := cfg.Limits.Burst
	if burst <= 0 {
		burst = rate * 2
	}
	s.limiter = ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})
	s.bulkhead = bulkhead.New[struct{}](bulkhead.Config{
		MaxConcurrent: cfg.Limits.MaxConcurrent,
		MaxQueue:      cfg.Limits.MaxConcurrent * 2,
		QueueTimeout:  10 * time.Second,
	})

	s.setupRoutes()

	addr := net.JoinHostPort(cfg.Daemon.Bind, fmt.Sprint(cfg.Daemon.Port))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = gzipMiddleware(h)
	h = rateLimitMiddleware(s.limiter, s.logger)(h)
	h = loggingMiddleware(s.logger)(h)
	h = recoveryMiddleware(s.logger)(h)
	return correlationIDMiddleware(h)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/languages", s.handleLanguages)

	s.router.HandleFunc("GET /v1/problems", s.handleListProblems)
	s.router.HandleFunc("GET /v1/problems/{lang}/{id...}", s.handleGetProblem)

	evaluate := bulkheadMiddleware(s.bulkhead, s.logger)
	s.router.Handle("POST /v1/execute", evaluate(http.HandlerFunc(s.handleExecute)))
	s.router.Handle("POST /v1/validate", evaluate(http.HandlerFunc(s.handleValidate)))
	s.router.Handle("POST /v1/validate/batch", evaluate(http.HandlerFunc(s.handleValidateBatch)))
	s.router.Handle("POST /v1/testrun", evaluate(http.HandlerFunc(s.handleTestRun)))

	s.router.HandleFunc("GET /v1/runs", s.handleListRuns)
	s.router.HandleFunc("DELETE /v1/runs/{id}", s.handleCancelRun)
}

// Addr returns the address the server listens on
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting drillpad daemon",
		"addr", s.server.Addr,
		"languages", s.app.Runner.Registry().Languages(),
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, cancelling runs in flight
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")

	s.runs.Range(func(_ uuid.UUID, tr *trackedRun) bool {
		tr.cancel()
		return true
	})

	err := s.server.Shutdown(ctx)
	if cerr := s.limiter.Close(); cerr != nil {
		s.logger.Warn("failed to close rate limiter", "error", cerr)
	}
	return err
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Info("daemon stopped")
	return nil
}

// track registers a run for listing and cancellation. The returned
// context is cancelled by DELETE /v1/runs/{id}; done must be called when
// the request finishes.
func (s *Server) track(ctx context.Context, run *domain.Run) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s.runs.Store(run.ID, &trackedRun{run: run, cancel: cancel})
	return ctx, func() {
		status := domain.RunStatusCompleted
		if ctx.Err() != nil {
			status = domain.RunStatusCancelled
		}
		cancel()
		s.runs.Delete(run.ID)
		run.Finish(status)
	}
}

// Helper methods

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	writeJSON(w, status, response)
}
