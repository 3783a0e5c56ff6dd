package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads ~/.drillpad/config.yaml, then applies a .env file from the
// working directory and DRILLPAD_* environment variables on top.
func Load() (*LocalConfig, error) {
	cfg, err := LoadLocalConfig()
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given files into the process
// environment. Missing files are skipped and variables that are already
// set win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with DRILLPAD_* environment variables
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("DRILLPAD_PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("DRILLPAD_BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv("DRILLPAD_LOG_LEVEL", cfg.Daemon.LogLevel)

	cfg.Runner.TimeBudgetMS = getEnvInt("DRILLPAD_TIME_BUDGET_MS", cfg.Runner.TimeBudgetMS)
	cfg.Runner.MaxCallStack = getEnvInt("DRILLPAD_MAX_CALL_STACK", cfg.Runner.MaxCallStack)
	cfg.Runner.Python = getEnv("DRILLPAD_PYTHON", cfg.Runner.Python)
	cfg.Runner.FallbackLocal = getEnvBool("DRILLPAD_PYTHON_FALLBACK_LOCAL", cfg.Runner.FallbackLocal)
	cfg.Runner.Docker.Image = getEnv("DRILLPAD_DOCKER_IMAGE", cfg.Runner.Docker.Image)
	cfg.Runner.Docker.MemoryMB = getEnvInt("DRILLPAD_DOCKER_MEMORY_MB", cfg.Runner.Docker.MemoryMB)
	cfg.Runner.Docker.CPULimit = getEnvFloat("DRILLPAD_DOCKER_CPU_LIMIT", cfg.Runner.Docker.CPULimit)
	cfg.Runner.Docker.NetworkOff = getEnvBool("DRILLPAD_DOCKER_NETWORK_OFF", cfg.Runner.Docker.NetworkOff)

	cfg.AntiCheat.Blocking = getEnvList("DRILLPAD_ANTICHEAT_BLOCKING", cfg.AntiCheat.Blocking)

	cfg.Bank.Path = getEnv("DRILLPAD_BANK_PATH", cfg.Bank.Path)
	cfg.Bank.SQLite = getEnv("DRILLPAD_BANK_SQLITE", cfg.Bank.SQLite)

	cfg.Limits.MaxConcurrent = getEnvInt("DRILLPAD_MAX_CONCURRENT", cfg.Limits.MaxConcurrent)
	cfg.Limits.BatchConcurrency = getEnvInt("DRILLPAD_BATCH_CONCURRENCY", cfg.Limits.BatchConcurrency)
	cfg.Limits.RequestsPerSecond = getEnvInt("DRILLPAD_RATE_LIMIT", cfg.Limits.RequestsPerSecond)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value. "none" yields an empty list.
func getEnvList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	if value == "none" {
		return []string{}
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
