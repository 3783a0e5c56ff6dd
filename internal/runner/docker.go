package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

const workspaceDir = "/workspace"

// DockerConfig holds Docker backend configuration
type DockerConfig struct {
	Image      string
	MemoryMB   int
	CPULimit   float64
	NetworkOff bool
}

// DefaultDockerConfig returns the default Docker backend configuration
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		Image:      "python:3.12-alpine",
		MemoryMB:   128,
		CPULimit:   0.5,
		NetworkOff: true,
	}
}

// DockerBackend runs each command in a throwaway container.
type DockerBackend struct {
	client *client.Client
	config DockerConfig
}

// NewDockerBackend creates a new Docker backend.
func NewDockerBackend(cfg DockerConfig) (*DockerBackend, error) {
	def := DefaultDockerConfig()
	if cfg.Image == "" {
		cfg.Image = def.Image
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = def.MemoryMB
	}
	if cfg.CPULimit == 0 {
		cfg.CPULimit = def.CPULimit
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	// Verify Docker is reachable
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerBackend{client: cli, config: cfg}, nil
}

func (b *DockerBackend) Name() string { return "docker" }

// Run creates a container, copies files into its workspace, executes cmd
// and removes the container again.
func (b *DockerBackend) Run(ctx context.Context, files map[string]string, cmd []string) (*ProcessResult, error) {
	id, err := b.createContainer(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		// The run context may already be done; removal must still happen.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		_ = b.destroyContainer(cleanupCtx, id)
	}()

	if err := b.copyFiles(ctx, id, files); err != nil {
		return nil, fmt.Errorf("copy files: %w", err)
	}
	return b.exec(ctx, id, cmd)
}

func (b *DockerBackend) createContainer(ctx context.Context) (string, error) {
	if err := b.ensureImage(ctx, b.config.Image); err != nil {
		return "", fmt.Errorf("ensure image: %w", err)
	}

	containerCfg := &container.Config{
		Image:           b.config.Image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      workspaceDir,
		NetworkDisabled: b.config.NetworkOff,
		Labels: map[string]string{
			"drillpad.runner": "true",
		},
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   int64(b.config.MemoryMB) * 1024 * 1024,
			NanoCPUs: int64(b.config.CPULimit * 1e9),
		},
	}

	resp, err := b.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = b.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}

	return resp.ID, nil
}

func (b *DockerBackend) copyFiles(ctx context.Context, containerID string, files map[string]string) error {
	buf, err := tarFiles(files)
	if err != nil {
		return err
	}
	return b.client.CopyToContainer(ctx, containerID, workspaceDir, buf, container.CopyToContainerOptions{})
}

func tarFiles(files map[string]string) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("write tar content: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	return &buf, nil
}

func (b *DockerBackend) exec(ctx context.Context, containerID string, cmd []string) (*ProcessResult, error) {
	execCfg := container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workspaceDir,
		AttachStdout: true,
		AttachStderr: true,
	}

	execResp, err := b.client.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	start := time.Now()

	attachResp, err := b.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	raw, err := readAttached(ctx, attachResp.Reader, attachResp.Close)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	inspectResp, err := b.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}

	stdout, stderr := demuxOutput(raw)
	return &ProcessResult{
		ExitCode: inspectResp.ExitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: duration,
	}, nil
}

// readAttached reads an attached exec stream to its end. The stream only
// ends when the process exits, so it is closed as soon as ctx is done.
func readAttached(ctx context.Context, r io.Reader, closeStream func()) ([]byte, error) {
	stop := context.AfterFunc(ctx, closeStream)
	defer stop()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *DockerBackend) destroyContainer(ctx context.Context, containerID string) error {
	timeout := 2
	_ = b.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
	return b.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

// Close closes the Docker client.
func (b *DockerBackend) Close() error {
	return b.client.Close()
}

func (b *DockerBackend) ensureImage(ctx context.Context, img string) error {
	_, err := b.client.ImageInspect(ctx, img)
	if err == nil {
		return nil // Already present
	}

	reader, err := b.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	// Drain the reader to complete the pull
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// demuxOutput separates Docker multiplexed stdout/stderr streams.
// Docker stream protocol uses 8-byte headers: [type][0][0][0][size1][size2][size3][size4]
// type: 1=stdout, 2=stderr
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder
	raw := data

	for len(data) >= 8 {
		streamType := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]

		if size > len(data) {
			size = len(data)
		}

		chunk := string(data[:size])
		data = data[size:]

		switch streamType {
		case 1:
			outBuf.WriteString(chunk)
		case 2:
			errBuf.WriteString(chunk)
		}
	}

	// Without stream headers the whole output is stdout
	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(raw) > 0 && (raw[0] > 2 || len(raw) < 8) {
		return string(raw), ""
	}

	return outBuf.String(), errBuf.String()
}

// ResilientBackend guards a Backend with a circuit breaker and retries
// for failures to start a process. Process failures are results, not
// errors, so they never trip the breaker.
type ResilientBackend struct {
	backend        Backend
	circuitBreaker circuitbreaker.CircuitBreaker[*ProcessResult]
	retrier        retry.Retry[*ProcessResult]
}

// NewResilientBackend wraps backend with resilience patterns from fortify
func NewResilientBackend(backend Backend, logger *slog.Logger) *ResilientBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientBackend{
		backend: backend,
		circuitBreaker: circuitbreaker.New[*ProcessResult](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("circuit breaker state change",
					"backend", backend.Name(),
					"from", from.String(),
					"to", to.String())
			},
		}),
		retrier: retry.New[*ProcessResult](retry.Config{
			MaxAttempts:   2,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryableBackendError,
		}),
	}
}

func (b *ResilientBackend) Name() string { return b.backend.Name() }

func (b *ResilientBackend) Run(ctx context.Context, files map[string]string, cmd []string) (*ProcessResult, error) {
	return b.circuitBreaker.Execute(ctx, func(ctx context.Context) (*ProcessResult, error) {
		return b.retrier.Do(ctx, func(ctx context.Context) (*ProcessResult, error) {
			return b.backend.Run(ctx, files, cmd)
		})
	})
}

func isRetryableBackendError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return client.IsErrConnectionFailed(err)
}
