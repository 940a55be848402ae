package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/okian/eventrank/internal/adapters/cache"
	"github.com/okian/eventrank/internal/adapters/catalog"
	"github.com/okian/eventrank/internal/adapters/database"
	"github.com/okian/eventrank/internal/adapters/embedding"
	"github.com/okian/eventrank/internal/config"
	"github.com/okian/eventrank/pkg/logger"
)

// Backends holds the storage collaborators selected by configuration.
type Backends struct {
	Catalog catalog.Catalog
	Cache   cache.Cache

	db    *gorm.DB
	redis *redis.Client
}

// BackendOption configures OpenBackends.
type BackendOption func(*backendOptions)

type backendOptions struct {
	migrate bool
}

// WithoutMigrate opens Postgres backends without creating the vector
// extension or tables, for read-only callers such as the diagnose CLI.
func WithoutMigrate() BackendOption {
	return func(o *backendOptions) { o.migrate = false }
}

func newBackendOptions(opts ...BackendOption) backendOptions {
	o := backendOptions{migrate: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MigratesSchema reports whether OpenBackends would run schema migrations
// with the given options.
func MigratesSchema(opts ...BackendOption) bool {
	return newBackendOptions(opts...).migrate
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// prepare migrates m unless migrations are disabled.
func (o backendOptions) prepare(ctx context.Context, m migrator) error {
	if !o.migrate {
		return nil
	}
	return m.Migrate(ctx)
}

// OpenBackends connects the configured catalog and cache. Postgres tables are
// created when missing unless WithoutMigrate is given.
func OpenBackends(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...BackendOption) (*Backends, error) {
	o := newBackendOptions(opts...)
	b := &Backends{}

	if cfg.CatalogBackend == config.BackendPostgres || cfg.CacheBackend == config.BackendPostgres {
		db, err := database.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		b.db = db
	}

	switch cfg.CatalogBackend {
	case config.BackendPostgres:
		pg := catalog.NewPostgres(b.db)
		if err := o.prepare(ctx, pg); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Catalog = pg
	default:
		if cfg.SnapshotPath == "" {
			log.Warn(ctx, "no snapshot_path configured; catalog is empty")
			b.Catalog = catalog.NewMemory(nil, nil)
			break
		}
		m, err := catalog.LoadSnapshot(cfg.SnapshotPath)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Catalog = m
	}

	switch cfg.CacheBackend {
	case config.BackendRedis:
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rc := cache.NewRedis(b.redis, cache.WithTTL(cfg.RedisTTL()))
		if err := rc.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		b.Cache = rc
	case config.BackendPostgres:
		pc := cache.NewPostgres(b.db)
		if err := o.prepare(ctx, pc); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Cache = pc
	default:
		b.Cache = cache.NewMemory()
	}

	log.Info(ctx, "backends ready",
		logger.String("catalog", cfg.CatalogBackend),
		logger.String("cache", cfg.CacheBackend),
		logger.Bool("migrate", o.migrate))
	return b, nil
}

// Close releases every open connection.
func (b *Backends) Close() error {
	var errs []error
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	if b.db != nil {
		errs = append(errs, database.Close(b.db))
	}
	return errors.Join(errs...)
}

// NewEmbedder builds the embedding client from configuration.
func NewEmbedder(cfg *config.Config, log logger.Logger) *embedding.Client {
	return embedding.NewClient(cfg.EmbeddingEndpoint, cfg.EmbeddingToken,
		embedding.WithTimeout(cfg.EmbeddingTimeout()),
		embedding.WithRetry(cfg.EmbeddingMaxRetries, cfg.EmbeddingBaseDelay(), cfg.EmbeddingMaxDelay()),
		embedding.WithMaxInputChars(cfg.EmbeddingMaxInputChars),
		embedding.WithRateLimit(cfg.EmbeddingRatePerSec, cfg.EmbeddingBurst),
		embedding.WithLogger(log),
	)
}
