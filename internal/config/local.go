package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for the local daemon and CLI
type LocalConfig struct {
	Daemon    DaemonConfig    `yaml:"daemon"`
	Runner    RunnerConfig    `yaml:"runner"`
	AntiCheat AntiCheatConfig `yaml:"anticheat"`
	Bank      BankConfig      `yaml:"bank"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// Python backends
const (
	PythonLocal  = "local"
	PythonDocker = "docker"
	PythonNone   = "none"
)

// RunnerConfig holds snippet execution settings
type RunnerConfig struct {
	TimeBudgetMS int    `yaml:"time_budget_ms"`
	MaxCallStack int    `yaml:"max_call_stack"`
	Python       string `yaml:"python"` // local, docker or none
	// FallbackLocal lets the docker backend degrade to a local python3
	// when the docker daemon cannot be reached.
	FallbackLocal bool               `yaml:"fallback_local"`
	Docker        DockerRunnerConfig `yaml:"docker"`
}

// DockerRunnerConfig holds Docker backend settings
type DockerRunnerConfig struct {
	Image      string  `yaml:"image"`
	MemoryMB   int     `yaml:"memory_mb"`
	CPULimit   float64 `yaml:"cpu_limit"`
	NetworkOff bool    `yaml:"network_off"`
}

// TimeBudget returns the per-execution budget as a duration
func (r RunnerConfig) TimeBudget() time.Duration {
	return time.Duration(r.TimeBudgetMS) * time.Millisecond
}

// AntiCheatConfig lists the flag kinds that void a passing result
type AntiCheatConfig struct {
	Blocking []string `yaml:"blocking"`
}

// BankConfig locates the problem bank. When SQLite is set the daemon reads
// the sealed database instead of the pack directory.
type BankConfig struct {
	Path   string `yaml:"path"`
	SQLite string `yaml:"sqlite,omitempty"`
}

// LimitsConfig bounds the work the daemon accepts
type LimitsConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent"`
	BatchConcurrency  int `yaml:"batch_concurrency"`
	MaxBatchSize      int `yaml:"max_batch_size"`
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// DrillpadDir returns the path to ~/.drillpad
func DrillpadDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".drillpad"), nil
}

// EnsureDrillpadDir creates ~/.drillpad and subdirectories if they don't exist
func EnsureDrillpadDir() (string, error) {
	dir, err := DrillpadDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "problems"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Runner: RunnerConfig{
			TimeBudgetMS: 5000,
			MaxCallStack: 4096,
			Python:       PythonLocal,
			Docker: DockerRunnerConfig{
				Image:      "python:3.12-alpine",
				MemoryMB:   128,
				CPULimit:   0.5,
				NetworkOff: true,
			},
		},
		AntiCheat: AntiCheatConfig{
			Blocking: []string{"literal_hardcode", "trivial_echo"},
		},
		Bank: BankConfig{
			Path: "./problems",
		},
		Limits: LimitsConfig{
			MaxConcurrent:     8,
			BatchConcurrency:  4,
			MaxBatchSize:      50,
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// Validate checks that settings are usable
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port %d out of range", c.Daemon.Port)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Daemon.LogLevel) {
		return fmt.Errorf("daemon.log_level %q: want debug, info, warn or error", c.Daemon.LogLevel)
	}
	if c.Runner.TimeBudgetMS <= 0 {
		return fmt.Errorf("runner.time_budget_ms must be positive")
	}
	if !slices.Contains([]string{PythonLocal, PythonDocker, PythonNone}, c.Runner.Python) {
		return fmt.Errorf("runner.python %q: want local, docker or none", c.Runner.Python)
	}
	if c.Limits.MaxConcurrent <= 0 || c.Limits.BatchConcurrency <= 0 {
		return fmt.Errorf("limits must be positive")
	}
	return nil
}

// ConfigPath returns the path of config.yaml inside dir
func ConfigPath(dir string) string {
	return filepath.Join(dir, "config.yaml")
}

// LoadLocalConfig loads configuration from ~/.drillpad/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := DrillpadDir()
	if err != nil {
		return nil, err
	}
	return LoadFile(ConfigPath(dir))
}

// LoadFile reads a config file over the defaults. A missing file yields
// the defaults.
func LoadFile(path string) (*LocalConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultLocalConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultLocalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveLocalConfig saves configuration to ~/.drillpad/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDrillpadDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(dir), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
