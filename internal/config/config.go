// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and EVENTRANK_ environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Backend names accepted by CacheBackend and CatalogBackend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of asynchronous embedding workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory embedding job queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets the capacity of the job deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// EmbedConcurrency bounds in-flight embedding calls while serving a recommendation.
	EmbedConcurrency int `koanf:"embed_concurrency"`

	// Embedding service.
	EmbeddingEndpoint      string  `koanf:"embedding_endpoint"`
	EmbeddingToken         string  `koanf:"embedding_token"`
	EmbeddingTimeoutMS     int     `koanf:"embedding_timeout_ms"`
	EmbeddingMaxRetries    int     `koanf:"embedding_max_retries"`
	EmbeddingBaseDelayMS   int     `koanf:"embedding_base_delay_ms"`
	EmbeddingMaxDelayMS    int     `koanf:"embedding_max_delay_ms"`
	EmbeddingMaxInputChars int     `koanf:"embedding_max_input_chars"`
	EmbeddingRatePerSec    float64 `koanf:"embedding_rate_per_sec"`
	EmbeddingBurst         int     `koanf:"embedding_burst"`

	// Scoring weights: total = WeightMajor*major + WeightVector*vector.
	WeightMajor  float64 `koanf:"weight_major"`
	WeightVector float64 `koanf:"weight_vector"`
	MajorBonus   float64 `koanf:"major_bonus"`

	// EmptyTargetsOpen treats an event with no target majors as open to all.
	EmptyTargetsOpen bool `koanf:"empty_targets_open"`

	// DefaultLimit and MaxLimit bound GET /recommendations?limit.
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`

	// CacheBackend selects the embedding cache: memory, redis or postgres.
	CacheBackend  string `koanf:"cache_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisTTLSec   int    `koanf:"redis_ttl_sec"`

	// CatalogBackend selects the profile/event source: memory or postgres.
	CatalogBackend string `koanf:"catalog_backend"`
	DatabaseDSN    string `koanf:"database_dsn"`
	SnapshotPath   string `koanf:"snapshot_path"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		WorkerCount:            runtime.NumCPU(),
		QueueSize:              10_000,
		DedupeSize:             50_000,
		EmbedConcurrency:       4,
		EmbeddingEndpoint:      "https://api-inference.huggingface.co/pipeline/feature-extraction/sentence-transformers/all-MiniLM-L6-v2",
		EmbeddingTimeoutMS:     10_000,
		EmbeddingMaxRetries:    3,
		EmbeddingBaseDelayMS:   500,
		EmbeddingMaxDelayMS:    8_000,
		EmbeddingMaxInputChars: 2048,
		EmbeddingRatePerSec:    10,
		EmbeddingBurst:         5,
		WeightMajor:            0.6,
		WeightVector:           0.4,
		MajorBonus:             1.0,
		EmptyTargetsOpen:       true,
		DefaultLimit:           10,
		MaxLimit:               100,
		CacheBackend:           BackendMemory,
		RedisAddr:              "localhost:6379",
		CatalogBackend:         BackendMemory,
	}
}

// EmbeddingTimeout returns the per-attempt embedding timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.EmbeddingTimeoutMS) * time.Millisecond
}

// EmbeddingBaseDelay returns the first retry delay.
func (c *Config) EmbeddingBaseDelay() time.Duration {
	return time.Duration(c.EmbeddingBaseDelayMS) * time.Millisecond
}

// EmbeddingMaxDelay returns the retry delay cap.
func (c *Config) EmbeddingMaxDelay() time.Duration {
	return time.Duration(c.EmbeddingMaxDelayMS) * time.Millisecond
}

// RedisTTL returns the cache entry TTL; zero means entries never expire.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLSec) * time.Second
}

// Validate checks the values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.EmbedConcurrency <= 0:
		return fmt.Errorf("%w: embed_concurrency must be positive", ErrInvalidConfig)
	case c.EmbeddingMaxRetries < 0:
		return fmt.Errorf("%w: embedding_max_retries must not be negative", ErrInvalidConfig)
	case c.EmbeddingMaxInputChars <= 0:
		return fmt.Errorf("%w: embedding_max_input_chars must be positive", ErrInvalidConfig)
	case c.DefaultLimit <= 0 || c.MaxLimit < c.DefaultLimit:
		return fmt.Errorf("%w: need 0 < default_limit <= max_limit", ErrInvalidConfig)
	}

	switch c.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr required for redis cache", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: database_dsn required for postgres cache", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache_backend %q", ErrInvalidConfig, c.CacheBackend)
	}

	switch c.CatalogBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: database_dsn required for postgres catalog", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown catalog_backend %q", ErrInvalidConfig, c.CatalogBackend)
	}
	return nil
}
