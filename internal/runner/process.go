package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Backend runs a command over a set of files in a scratch working
// directory. Run returns an error only when the command could not be run
// at all; a command that runs and fails is reported in the ProcessResult.
type Backend interface {
	Name() string
	Run(ctx context.Context, files map[string]string, cmd []string) (*ProcessResult, error)
}

// ProcessResult contains the outcome of one command
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// LocalBackend runs commands directly on the host
type LocalBackend struct{}

// NewLocalBackend creates a new local backend
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Run(ctx context.Context, files map[string]string, cmd []string) (*ProcessResult, error) {
	if len(cmd) == 0 {
		return nil, errors.New("empty command")
	}

	tmpDir, err := createTempCodeDir(files)
	if err != nil {
		return nil, fmt.Errorf("prepare workspace: %w", err)
	}
	defer removeTempDir(tmpDir)

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Dir = tmpDir
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = time.Second

	start := time.Now()
	err = c.Run()
	duration := time.Since(start)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("run %s: %w", cmd[0], err)
	}

	return &ProcessResult{
		ExitCode: c.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}, nil
}

func createTempCodeDir(files map[string]string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "drillpad-run-*")
	if err != nil {
		return "", err
	}

	for filename, content := range files {
		filePath := filepath.Join(tmpDir, filename)
		if dir := filepath.Dir(filePath); dir != tmpDir {
			if err := os.MkdirAll(dir, 0755); err != nil {
				removeTempDir(tmpDir)
				return "", err
			}
		}
		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			removeTempDir(tmpDir)
			return "", err
		}
	}

	return tmpDir, nil
}

func removeTempDir(dir string) {
	_ = os.RemoveAll(dir)
}
