package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/felixgeelhaar/drillpad/internal/app"
	"github.com/felixgeelhaar/drillpad/internal/config"
	"github.com/felixgeelhaar/drillpad/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "drillpadd.pid"

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", failColor("Error:"), err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "drillpad",
		Usage:   "practice coding problems and check solutions locally",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "bank",
				Usage: "problem pack directory (overrides bank.path)",
			},
			&cli.StringFlag{
				Name:  "bank-db",
				Usage: "sealed SQLite problem bank (overrides bank.sqlite)",
			},
			&cli.StringFlag{
				Name:  "python",
				Usage: "python backend: local, docker or none",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable colored output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log at debug level",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("no-color") {
				color.NoColor = true
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			problemsCommand(),
			validateCommand(),
			testCommand(),
			varyCommand(),
			bankCommand(),
			serveCommand(),
			startCommand(),
			stopCommand(),
			statusCommand(),
			logsCommand(),
			mcpCommand(),
			{
				Name:  "version",
				Usage: "show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("drillpad %s\n", Version)
					return nil
				},
			},
		},
	}
}

// loadConfig reads the config and applies the global flag overrides
func loadConfig(cmd *cli.Command) (*config.LocalConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := cmd.String("bank"); v != "" {
		cfg.Bank.Path = v
		cfg.Bank.SQLite = ""
	}
	if v := cmd.String("bank-db"); v != "" {
		cfg.Bank.SQLite = v
	}
	if v := cmd.String("python"); v != "" {
		cfg.Runner.Python = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp wires the application for one-shot commands. Logs go to stderr
// so they never mix with command output.
func openApp(ctx context.Context, cmd *cli.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openAppWith(ctx, cmd, cfg)
}

func openAppWith(ctx context.Context, cmd *cli.Command, cfg *config.LocalConfig) (*app.App, error) {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(logging.Console(os.Stderr, level))

	return app.New(ctx, app.Options{Config: cfg, Logger: logger})
}

// readCode returns the solution body from a file argument, or from stdin
// when the argument is empty or "-".
func readCode(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read solution: %w", err)
	}
	return string(data), nil
}
