// Package config loads engine configuration from the environment with an
// optional YAML override file for the language catalogue and logger.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"judgebox/pkg/utils/logger"

	env "github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ExecutionMode selects the batch executor backend at startup.
type ExecutionMode string

const (
	ModeContainer ExecutionMode = "container"
	ModeProcess   ExecutionMode = "process"
)

const (
	defaultPort            = 3000
	defaultMaxConcurrent   = 2
	defaultMaxWaiting      = 100
	defaultTimeLimitSec    = 5
	maxTimeLimitSec        = 10
	defaultMemoryLimitMB   = 256
	maxMemoryLimitMB       = 512
	defaultMaxCodeSize     = 65536
	defaultSandboxImage    = "judge-sandbox"
	defaultTempDir         = "/tmp/judge"
	defaultRateLimitWindow = 60 * time.Second
	defaultRateLimitMax    = 30
)

// Limits groups the submission bounds enforced before admission.
type Limits struct {
	DefaultTimeLimitSec int   `yaml:"defaultTimeLimit"`
	MaxTimeLimitSec     int   `yaml:"maxTimeLimit"`
	DefaultMemoryMB     int   `yaml:"defaultMemoryLimit"`
	MaxMemoryMB         int   `yaml:"maxMemoryLimit"`
	MaxCodeSize         int   `yaml:"maxCodeSize"`
	MaxTestCases        int   `yaml:"maxTestCases"`
	MaxBatchSubmissions int   `yaml:"maxBatchSubmissions"`
	MaxStdoutBytes      int   `yaml:"maxStdoutBytes"`
	MaxStderrBytes      int   `yaml:"maxStderrBytes"`
	MaxOutputFileMB     int64 `yaml:"maxOutputFileMB"`
}

// RateLimitConfig holds the fixed-window limiter settings.
type RateLimitConfig struct {
	Window    time.Duration `yaml:"window"`
	Max       int           `yaml:"max"`
	RedisAddr string        `yaml:"redisAddr"` // optional shared store
}

// Config holds the full engine configuration.
type Config struct {
	Port          int             `yaml:"port"`
	Mode          ExecutionMode   `yaml:"executionMode"`
	MaxConcurrent int             `yaml:"maxConcurrent"`
	MaxWaiting    int             `yaml:"maxWaiting"`
	SandboxImage  string          `yaml:"sandboxImage"`
	TempDir       string          `yaml:"tempDir"`
	Limits        Limits          `yaml:"limits"`
	RateLimit     RateLimitConfig `yaml:"rateLimit"`
	Logger        logger.Config   `yaml:"logger"`
	CataloguePath string          `yaml:"cataloguePath"`
}

// Load reads configuration from the environment. A .env file is honoured
// when present, and CONFIG_FILE may name a YAML file whose values are
// applied before the env overrides.
func Load() (*Config, error) {
	_ = env.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:          defaultPort,
		Mode:          ModeContainer,
		MaxConcurrent: defaultMaxConcurrent,
		MaxWaiting:    defaultMaxWaiting,
		SandboxImage:  defaultSandboxImage,
		TempDir:       defaultTempDir,
		Limits: Limits{
			DefaultTimeLimitSec: defaultTimeLimitSec,
			MaxTimeLimitSec:     maxTimeLimitSec,
			DefaultMemoryMB:     defaultMemoryLimitMB,
			MaxMemoryMB:         maxMemoryLimitMB,
			MaxCodeSize:         defaultMaxCodeSize,
			MaxTestCases:        50,
			MaxBatchSubmissions: 10,
			MaxStdoutBytes:      10000,
			MaxStderrBytes:      5000,
			MaxOutputFileMB:     10,
		},
		RateLimit: RateLimitConfig{
			Window: defaultRateLimitWindow,
			Max:    defaultRateLimitMax,
		},
		Logger: logger.Config{Level: "info", Format: "console"},
	}
}

func loadYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error
	if cfg.Port, err = intEnv("PORT", cfg.Port); err != nil {
		return err
	}
	if mode := os.Getenv("EXECUTION_MODE"); mode != "" {
		cfg.Mode = ExecutionMode(mode)
	}
	if cfg.MaxConcurrent, err = intEnv("MAX_CONCURRENT", cfg.MaxConcurrent); err != nil {
		return err
	}
	if cfg.MaxWaiting, err = intEnv("MAX_WAITING", cfg.MaxWaiting); err != nil {
		return err
	}
	if cfg.Limits.DefaultTimeLimitSec, err = intEnv("DEFAULT_TIME_LIMIT", cfg.Limits.DefaultTimeLimitSec); err != nil {
		return err
	}
	if cfg.Limits.MaxTimeLimitSec, err = intEnv("MAX_TIME_LIMIT", cfg.Limits.MaxTimeLimitSec); err != nil {
		return err
	}
	if cfg.Limits.DefaultMemoryMB, err = intEnv("DEFAULT_MEMORY_LIMIT", cfg.Limits.DefaultMemoryMB); err != nil {
		return err
	}
	if cfg.Limits.MaxMemoryMB, err = intEnv("MAX_MEMORY_LIMIT", cfg.Limits.MaxMemoryMB); err != nil {
		return err
	}
	if cfg.Limits.MaxCodeSize, err = intEnv("MAX_CODE_SIZE", cfg.Limits.MaxCodeSize); err != nil {
		return err
	}
	if image := os.Getenv("SANDBOX_IMAGE"); image != "" {
		cfg.SandboxImage = image
	}
	if dir := os.Getenv("TEMP_DIR"); dir != "" {
		cfg.TempDir = dir
	}
	if windowMs, err := intEnv("RATE_LIMIT_WINDOW", int(cfg.RateLimit.Window/time.Millisecond)); err != nil {
		return err
	} else {
		cfg.RateLimit.Window = time.Duration(windowMs) * time.Millisecond
	}
	if cfg.RateLimit.Max, err = intEnv("RATE_LIMIT_MAX", cfg.RateLimit.Max); err != nil {
		return err
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RateLimit.RedisAddr = addr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logger.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logger.Format = format
	}
	if path := os.Getenv("LANGUAGES_FILE"); path != "" {
		cfg.CataloguePath = path
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if cfg.Mode != ModeContainer && cfg.Mode != ModeProcess {
		return fmt.Errorf("invalid EXECUTION_MODE: %q (want container or process)", cfg.Mode)
	}
	if cfg.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid MAX_CONCURRENT: %d", cfg.MaxConcurrent)
	}
	if cfg.MaxWaiting < 0 {
		return fmt.Errorf("invalid MAX_WAITING: %d", cfg.MaxWaiting)
	}
	if cfg.Limits.MaxTimeLimitSec < cfg.Limits.DefaultTimeLimitSec {
		return fmt.Errorf("MAX_TIME_LIMIT %d below DEFAULT_TIME_LIMIT %d",
			cfg.Limits.MaxTimeLimitSec, cfg.Limits.DefaultTimeLimitSec)
	}
	if cfg.Limits.MaxMemoryMB < cfg.Limits.DefaultMemoryMB {
		return fmt.Errorf("MAX_MEMORY_LIMIT %d below DEFAULT_MEMORY_LIMIT %d",
			cfg.Limits.MaxMemoryMB, cfg.Limits.DefaultMemoryMB)
	}
	return nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return value, nil
}
