// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - All functions accept context.Context as the first parameter.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory plan job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of plan workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the in-flight assessment guard.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxTopics caps the ranked topic list.
	MaxTopics int `koanf:"max_topics"`

	// MaxBlockHours caps the hours one topic receives on one day.
	MaxBlockHours float64 `koanf:"max_block_hours"`

	// DefaultTopK is the number of hits requested per subject.
	DefaultTopK int `koanf:"default_top_k"`

	// StressSource picks the scorer's stress input: confidence or assessment.
	StressSource string `koanf:"stress_source"`

	// CoverageSource picks the scorer's coverage input: none or assessment.
	CoverageSource string `koanf:"coverage_source"`

	// RetrievalURL is the base URL of the RAG proxy. Empty disables retrieval.
	RetrievalURL string `koanf:"retrieval_url"`

	// RetrievalTimeoutMS bounds each per-subject retrieval call.
	RetrievalTimeoutMS int `koanf:"retrieval_timeout_ms"`

	// RetrievalUserID is forwarded to the proxy to scope document access.
	RetrievalUserID string `koanf:"retrieval_user_id"`

	// CacheEnabled turns on the Redis retrieval cache.
	CacheEnabled bool `koanf:"cache_enabled"`

	RedisAddr       string `koanf:"redis_addr"`
	RedisPassword   string `koanf:"redis_password"`
	RedisDB         int    `koanf:"redis_db"`
	CacheTTLSeconds int    `koanf:"cache_ttl_seconds"`

	// StoreDriver selects plan persistence: memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	// PostgresDSN is required when StoreDriver is postgres.
	PostgresDSN string `koanf:"postgres_dsn"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          1_000,
		WorkerCount:        runtime.NumCPU() * 2,
		DedupeSize:         10_000,
		MaxTopics:          15,
		MaxBlockHours:      2,
		DefaultTopK:        10,
		StressSource:       "confidence",
		CoverageSource:     "none",
		RetrievalTimeoutMS: 8_000,
		RedisAddr:          "localhost:6379",
		CacheTTLSeconds:    3_600,
		StoreDriver:        StoreMemory,
	}
}

// RetrievalTimeout returns the per-subject retrieval timeout.
func (c *Config) RetrievalTimeout() time.Duration {
	return time.Duration(c.RetrievalTimeoutMS) * time.Millisecond
}

// CacheTTL returns the retrieval cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Validate checks cross-field constraints.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxTopics < 1:
		return fmt.Errorf("%w: max_topics must be positive", ErrInvalidConfig)
	case c.MaxBlockHours <= 0:
		return fmt.Errorf("%w: max_block_hours must be positive", ErrInvalidConfig)
	case c.RetrievalTimeoutMS < 1:
		return fmt.Errorf("%w: retrieval_timeout_ms must be positive", ErrInvalidConfig)
	case c.StressSource != "confidence" && c.StressSource != "assessment":
		return fmt.Errorf("%w: stress_source must be confidence or assessment", ErrInvalidConfig)
	case c.CoverageSource != "none" && c.CoverageSource != "assessment":
		return fmt.Errorf("%w: coverage_source must be none or assessment", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.CacheEnabled && c.RedisAddr == "" {
		return fmt.Errorf("%w: redis_addr is required when the cache is enabled", ErrInvalidConfig)
	}
	return nil
}
