package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/felixgeelhaar/drillpad/internal/config"
	"github.com/felixgeelhaar/drillpad/internal/daemon"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP daemon in the foreground",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port (overrides daemon.port)"},
		},
		Action: cmdServe,
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:   "start",
		Usage:  "start drillpadd in the background",
		Action: cmdStart,
	}
}

func stopCommand() *cli.Command {
	return &cli.Command{
		Name:   "stop",
		Usage:  "stop the background daemon",
		Action: cmdStop,
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "show daemon status",
		Action: cmdStatus,
	}
}

func logsCommand() *cli.Command {
	return &cli.Command{
		Name:   "logs",
		Usage:  "show recent daemon logs",
		Action: cmdLogs,
	}
}

func cmdServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if p := cmd.Int("port"); p > 0 {
		cfg.Daemon.Port = p
	}

	a, err := openAppWith(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon.Version = Version
	server := daemon.NewServer(a)
	fmt.Printf("Serving on http://%s (Ctrl+C to stop)\n", server.Addr())
	return server.Run(ctx)
}

// cmdStart starts the daemon in the background
func cmdStart(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := daemonAddr(cfg)
	if isRunning(addr) {
		fmt.Println(passColor("✓"), "Daemon is already running")
		return nil
	}

	dir, err := config.EnsureDrillpadDir()
	if err != nil {
		return fmt.Errorf("setup drillpad directory: %w", err)
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	proc := exec.Command(daemonPath)
	proc.Dir = dir
	proc.Stdout = nil
	proc.Stderr = nil

	// Detach from parent process (platform-specific)
	configureDaemonProcess(proc)

	if err := proc.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning(addr) {
			fmt.Println(" " + passColor("✓"))
			fmt.Printf("Daemon running at %s\n", addr)
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" " + failColor("✗"))
	return fmt.Errorf("daemon failed to start (check logs with 'drillpad logs')")
}

// cmdStop stops the daemon
func cmdStop(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := daemonAddr(cfg)
	if !isRunning(addr) {
		fmt.Println("Daemon is not running")
		return nil
	}

	dir, err := config.DrillpadDir()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning(addr) {
			fmt.Println(" " + passColor("✓"))
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" " + failColor("✗"))
	return fmt.Errorf("daemon did not stop gracefully")
}

// cmdStatus shows daemon status
func cmdStatus(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := daemonAddr(cfg)

	resp, err := http.Get(addr + "/v1/health")
	if err != nil {
		fmt.Println("Status:   " + dimColor("stopped"))
		return nil
	}
	defer resp.Body.Close()

	var health struct {
		Status   string `json:"status"`
		Version  string `json:"version"`
		Problems int    `json:"problems"`
		Runs     int    `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("parse status: %w", err)
	}

	fmt.Printf("Status:   %s\n", passColor(health.Status))
	fmt.Printf("Version:  %s\n", health.Version)
	fmt.Printf("Problems: %d\n", health.Problems)
	fmt.Printf("Running:  %d\n", health.Runs)
	fmt.Printf("Address:  %s\n", addr)
	return nil
}

// cmdLogs shows the tail of the daemon log
func cmdLogs(ctx context.Context, cmd *cli.Command) error {
	dir, err := config.DrillpadDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(dir, "logs", "drillpadd.log")
	file, err := os.Open(logPath)
	if os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// Seek to end and go back ~4KB for recent logs
	info, err := file.Stat()
	if err != nil {
		return err
	}
	offset := max(info.Size()-4096, 0)
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	// Skip partial first line if we seeked
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}

func daemonAddr(cfg *config.LocalConfig) string {
	return "http://" + net.JoinHostPort(cfg.Daemon.Bind, strconv.Itoa(cfg.Daemon.Port))
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning(addr string) bool {
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(addr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the drillpadd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("drillpadd"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "drillpadd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/drillpadd", "./drillpadd"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("drillpadd binary not found (build with 'go build ./cmd/drillpadd')")
}
