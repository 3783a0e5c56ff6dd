package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Config holds executor configuration
type Config struct {
	TimeBudget       time.Duration
	MaxCallStackSize int
}

// DefaultConfig returns default executor configuration
func DefaultConfig() Config {
	return Config{
		TimeBudget:       5 * time.Second,
		MaxCallStackSize: defaultMaxCallStack,
	}
}

// Service routes snippets to the runtime for their language and keeps
// track of executions in flight so they can be listed and cancelled.
type Service struct {
	config   Config
	registry *Registry
	logger   *slog.Logger

	running *xsync.MapOf[uuid.UUID, *runState]
}

type runState struct {
	run    *domain.Run
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewService creates a new executor service
func NewService(cfg Config, registry *Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:   cfg,
		registry: registry,
		logger:   logger,
		running:  xsync.NewMapOf[uuid.UUID, *runState](),
	}
}

// Registry exposes the runtimes this service dispatches to.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Supports reports whether snippets in lang can be executed.
func (s *Service) Supports(lang domain.Language) bool {
	return s.registry.Supports(lang)
}

// ExecuteRequest contains data for executing a snippet
type ExecuteRequest struct {
	Run      *domain.Run // optional; tracked while executing
	Language domain.Language
	Setup    string
	Body     string
	Options  Options
}

// Execute runs a snippet and returns its result. The only error is
// domain.ErrNoRuntime for a language without a registered runtime.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*domain.ExecutionResult, error) {
	rt, err := s.registry.Get(req.Language)
	if err != nil {
		return nil, err
	}

	opts := req.Options
	if opts.TimeBudget <= 0 {
		opts.TimeBudget = s.config.TimeBudget
	}
	if opts.MaxCallStackSize <= 0 {
		opts.MaxCallStackSize = s.config.MaxCallStackSize
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if req.Run != nil {
		state := &runState{run: req.Run, cancel: cancel, doneCh: make(chan struct{})}
		s.running.Store(req.Run.ID, state)
		defer func() {
			s.running.Delete(req.Run.ID)
			close(state.doneCh)
		}()
	}

	res := rt.Execute(ctx, req.Setup, req.Body, opts)
	if res == nil {
		res = domain.NewExecutionFailure(domain.ErrorRuntime, "", "runtime returned no result", nil)
	}

	attrs := []any{"language", req.Language, "success", res.Success, "duration", res.Duration}
	if res.Error != nil {
		attrs = append(attrs, "error_kind", res.Error.Kind)
	}
	s.logger.Debug("snippet executed", attrs...)
	return res, nil
}

// ExecuteAsync runs a snippet in the background. The returned channel
// delivers exactly one result and is then closed.
func (s *Service) ExecuteAsync(ctx context.Context, req ExecuteRequest) <-chan *domain.ExecutionResult {
	ch := make(chan *domain.ExecutionResult, 1)
	go func() {
		defer close(ch)
		res, err := s.Execute(ctx, req)
		if err != nil {
			res = domain.NewExecutionFailure(domain.ErrorRuntime, "", err.Error(), nil)
		}
		ch <- res
	}()
	return ch
}

// Cancel cancels a running execution
func (s *Service) Cancel(runID uuid.UUID) error {
	state, ok := s.running.Load(runID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	state.cancel()
	return nil
}

// IsRunning checks if a run is currently executing
func (s *Service) IsRunning(runID uuid.UUID) bool {
	_, ok := s.running.Load(runID)
	return ok
}

// Running returns the runs currently executing.
func (s *Service) Running() []*domain.Run {
	var runs []*domain.Run
	s.running.Range(func(_ uuid.UUID, state *runState) bool {
		runs = append(runs, state.run)
		return true
	})
	return runs
}

// Wait waits for a run to complete
func (s *Service) Wait(ctx context.Context, runID uuid.UUID) error {
	state, ok := s.running.Load(runID)
	if !ok {
		return nil // Already completed
	}

	select {
	case <-state.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
