package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	mcpserver "github.com/felixgeelhaar/drillpad/internal/mcp"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "serve drillpad tools over MCP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "http", Usage: "listen on this address instead of stdio"},
		},
		Action: cmdMCP,
	}
}

// cmdMCP serves the MCP tools on stdio, or HTTP with --http
func cmdMCP(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcpserver.NewServer(a, Version)
	if addr := cmd.String("http"); addr != "" {
		return srv.ServeHTTP(ctx, addr)
	}
	return srv.ServeStdio(ctx)
}
