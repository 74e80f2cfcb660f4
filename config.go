package cascade

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the Orchestrator.
type Config struct {
	// Concurrency is the maximum number of jobs processed concurrently
	// by the local worker pool.
	Concurrency int `yaml:"concurrency"`

	// DefaultMaxRetries is the retry ceiling applied to jobs created
	// without an explicit value.
	DefaultMaxRetries int `yaml:"default_max_retries"`

	// RateLimit is the maximum sustained job starts per second across
	// the pool. Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 when RateLimit is set but RateBurst is zero.
	RateBurst int `yaml:"rate_burst"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CronTickInterval is how often the cron scheduler checks for due
	// entries. Zero disables the scheduler.
	CronTickInterval time.Duration `yaml:"cron_tick_interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		DefaultMaxRetries: 3,
		ShutdownTimeout:   30 * time.Second,
		CronTickInterval:  30 * time.Second,
	}
}

// LoadConfig reads a YAML configuration file and overlays it on
// DefaultConfig. Fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cascade: read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cascade: parse config %s: %w", path, err)
	}

	return cfg, nil
}
