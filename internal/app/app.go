// Package app wires the problem bank, runtimes, validator and test runner
// from a LocalConfig. The daemon, the MCP server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/drillpad/internal/anticheat"
	"github.com/felixgeelhaar/drillpad/internal/config"
	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/problem"
	"github.com/felixgeelhaar/drillpad/internal/runner"
	"github.com/felixgeelhaar/drillpad/internal/storage/sqlite"
	"github.com/felixgeelhaar/drillpad/internal/testrun"
	"github.com/felixgeelhaar/drillpad/internal/validator"
)

// App holds all application dependencies
type App struct {
	Config    *config.LocalConfig
	Problems  *problem.Registry
	Runner    *runner.Service
	Validator *validator.Service
	TestRuns  *testrun.Runner
	Events    *domain.EventDispatcher
	Logger    *slog.Logger

	closers []io.Closer
}

// Options holds what New needs beyond the config
type Options struct {
	Config *config.LocalConfig
	Logger *slog.Logger
	// Source overrides the bank location in Config.Bank.
	Source problem.Source
	// Backend overrides the python backend chosen from Config.Runner.
	Backend runner.Backend
}

// New creates an application instance with all dependencies wired and
// the problem bank loaded.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultLocalConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Config: cfg,
		Events: domain.NewEventDispatcher(),
		Logger: logger,
	}

	policy, err := anticheat.ParsePolicy(cfg.AntiCheat.Blocking)
	if err != nil {
		return nil, fmt.Errorf("anticheat policy: %w", err)
	}

	backend := opts.Backend
	if backend == nil {
		backend = a.pythonBackend()
	}
	registry := runner.NewDefaultRegistry(backend, logger)
	a.Runner = runner.NewService(runner.Config{
		TimeBudget:       cfg.Runner.TimeBudget(),
		MaxCallStackSize: cfg.Runner.MaxCallStack,
	}, registry, logger)

	a.Validator = validator.NewService(a.Runner, logger)
	a.Validator.SetPolicy(policy)
	a.Validator.SetEventDispatcher(a.Events)

	a.TestRuns = testrun.NewRunner(a.Validator, a.Runner, logger)
	a.TestRuns.SetEventDispatcher(a.Events)

	a.Events.Subscribe(domain.EventCheatFlagged, func(e domain.Event) {
		if ev, ok := e.(domain.CheatFlaggedEvent); ok {
			logger.Info("submission flagged",
				"run_id", ev.RunID(),
				"problem_id", ev.ProblemID,
				"blocking", ev.Blocking,
				"flags", len(ev.Flags),
			)
		}
	})

	src := opts.Source
	if src == nil {
		src, err = a.bankSource()
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Problems = problem.NewRegistry()
	if err := a.Problems.Load(ctx, src); err != nil {
		a.Close()
		return nil, fmt.Errorf("load problem bank: %w", err)
	}

	stats := a.Problems.Stats()
	logger.Info("problem bank loaded",
		"packs", stats.Packs,
		"problems", stats.Problems,
		"languages", registry.Languages(),
	)

	return a, nil
}

// pythonBackend picks the process backend for Python, or nil when Python
// is disabled or unavailable. Without a backend Python problems are
// checked by pattern only.
func (a *App) pythonBackend() runner.Backend {
	rc := a.Config.Runner
	switch rc.Python {
	case config.PythonNone:
		return nil
	case config.PythonDocker:
		docker, err := runner.NewDockerBackend(runner.DockerConfig{
			Image:      rc.Docker.Image,
			MemoryMB:   rc.Docker.MemoryMB,
			CPULimit:   rc.Docker.CPULimit,
			NetworkOff: rc.Docker.NetworkOff,
		})
		if err != nil {
			if rc.FallbackLocal {
				a.Logger.Warn("docker backend not available, using local python", "error", err)
				return runner.NewLocalBackend()
			}
			a.Logger.Warn("docker backend not available, python runs disabled", "error", err)
			return nil
		}
		a.closers = append(a.closers, docker)
		return runner.NewResilientBackend(docker, a.Logger)
	default:
		return runner.NewLocalBackend()
	}
}

// bankSource opens the sealed SQLite bank when one is configured and the
// pack directory otherwise.
func (a *App) bankSource() (problem.Source, error) {
	if path := a.Config.Bank.SQLite; path != "" {
		db, err := sqlite.OpenReadOnly(path)
		if err != nil {
			return nil, fmt.Errorf("open problem bank: %w", err)
		}
		a.closers = append(a.closers, db)
		return sqlite.NewProblemStore(db), nil
	}
	return problem.NewLoader(a.Config.Bank.Path), nil
}

// Close releases the database and docker client
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
