package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/felixgeelhaar/drillpad/internal/app"
	"github.com/felixgeelhaar/drillpad/internal/config"
	"github.com/felixgeelhaar/drillpad/internal/daemon"
	"github.com/felixgeelhaar/drillpad/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFileName = "drillpadd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Ensure ~/.drillpad directory exists
	dir, err := config.EnsureDrillpadDir()
	if err != nil {
		return fmt.Errorf("ensure drillpad dir: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logFile, err := logging.Setup(dir, "drillpadd", logging.ParseLevel(cfg.Daemon.LogLevel))
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

	pidPath := filepath.Join(dir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	// Bank path falls back to ~/.drillpad/problems
	if cfg.Bank.SQLite == "" {
		if _, err := os.Stat(cfg.Bank.Path); os.IsNotExist(err) {
			cfg.Bank.Path = filepath.Join(dir, "problems")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer a.Close()

	daemon.Version = Version
	server := daemon.NewServer(a)
	return server.Run(ctx)
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}
