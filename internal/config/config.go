// Package config loads and validates the runtime configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the playground agent runtime.
type Config struct {
	Cache         CacheConfig         `yaml:"cache"`
	Execution     ExecutionConfig     `yaml:"execution"`
	Limits        LimitsConfig        `yaml:"limits"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CacheConfig tunes the result cache.
type CacheConfig struct {
	// TTL is the default entry lifetime.
	TTL time.Duration `yaml:"ttl"`
	// MaxEntries bounds the cache size.
	MaxEntries int `yaml:"max_entries"`
}

// ExecutionConfig tunes the retry/timeout middleware defaults.
type ExecutionConfig struct {
	// Timeout bounds a single tool attempt.
	Timeout time.Duration `yaml:"timeout"`
	// ReadRetries applies to idempotent read tools. Side-effecting
	// tools always run with zero retries.
	ReadRetries int `yaml:"read_retries"`
	// RetryBackoff waits between middleware-level attempts.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// LimitsConfig holds the control-plane circuit breaker thresholds.
type LimitsConfig struct {
	// MaxFailuresPerCall is the consecutive identical-failure count
	// after which a call signature is blocked.
	MaxFailuresPerCall int `yaml:"max_failures_per_call"`
	// MaxToolRounds caps automatic agent continuations per user turn.
	MaxToolRounds int `yaml:"max_tool_rounds"`
	// MaxBatchSize caps items per batch operation.
	MaxBatchSize int `yaml:"max_batch_size"`
}

// SandboxConfig points at the external sandbox service.
type SandboxConfig struct {
	// BaseURL of the sandbox REST API.
	BaseURL string `yaml:"base_url"`
	// Timeout for sandbox HTTP calls.
	Timeout time.Duration `yaml:"timeout"`
}

// AuditConfig controls the sqlite tool-call audit log.
type AuditConfig struct {
	// Enabled toggles audit recording.
	Enabled bool `yaml:"enabled"`
	// Path of the sqlite database file. ":memory:" is accepted.
	Path string `yaml:"path"`
}

// ObservabilityConfig groups logging and tracing settings.
type ObservabilityConfig struct {
	LogLevel      string  `yaml:"log_level"`
	LogFormat     string  `yaml:"log_format"`
	OTLPEndpoint  string  `yaml:"otlp_endpoint"`
	SamplingRate  float64 `yaml:"sampling_rate"`
	Environment   string  `yaml:"environment"`
	MetricsListen string  `yaml:"metrics_listen"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 256,
		},
		Execution: ExecutionConfig{
			Timeout:      30 * time.Second,
			ReadRetries:  1,
			RetryBackoff: 250 * time.Millisecond,
		},
		Limits: LimitsConfig{
			MaxFailuresPerCall: 2,
			MaxToolRounds:      50,
			MaxBatchSize:       20,
		},
		Sandbox: SandboxConfig{
			BaseURL: "http://localhost:8800",
			Timeout: 60 * time.Second,
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    "playground-audit.db",
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogFormat:     "json",
			SamplingRate:  1.0,
			MetricsListen: ":9090",
		},
	}
}

// Load reads a YAML config file, expands ${ENV} references, and merges
// it over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot operate with.
func (c *Config) Validate() error {
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Limits.MaxFailuresPerCall < 1 {
		return fmt.Errorf("limits.max_failures_per_call must be at least 1")
	}
	if c.Limits.MaxToolRounds < 1 {
		return fmt.Errorf("limits.max_tool_rounds must be at least 1")
	}
	if c.Limits.MaxBatchSize < 1 {
		return fmt.Errorf("limits.max_batch_size must be at least 1")
	}
	if c.Execution.ReadRetries < 0 {
		return fmt.Errorf("execution.read_retries must not be negative")
	}
	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		return fmt.Errorf("observability.sampling_rate must be between 0 and 1")
	}
	return nil
}
