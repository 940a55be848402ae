package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/eventrank/pkg/metrics"
)

// embeddingRow is one row of the embedding_cache table.
type embeddingRow struct {
	EntityKey   string          `gorm:"primaryKey;column:entity_key;size:255"`
	ContentHash string          `gorm:"column:content_hash;size:64;not null"`
	Embedding   pgvector.Vector `gorm:"column:embedding;type:vector(384)"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (embeddingRow) TableName() string { return "embedding_cache" }

// Postgres is a Cache backed by a pgvector table.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres wraps an open gorm connection.
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the vector extension and the cache table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	db := p.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("cache: create vector extension: %w", err)
	}
	if err := db.AutoMigrate(&embeddingRow{}); err != nil {
		return fmt.Errorf("cache: migrate embedding_cache: %w", err)
	}
	return nil
}

// Get implements Reader.
func (p *Postgres) Get(ctx context.Context, key, hash string) ([]float32, bool, error) {
	var row embeddingRow
	err := p.db.WithContext(ctx).Where("entity_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.RecordCacheOperation("postgres", "get", "miss")
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordCacheOperation("postgres", "get", "error")
		return nil, false, fmt.Errorf("cache: postgres get %s: %w", key, err)
	}
	if row.ContentHash != hash {
		metrics.RecordCacheOperation("postgres", "get", "miss")
		return nil, false, nil
	}
	metrics.RecordCacheOperation("postgres", "get", "hit")
	return row.Embedding.Slice(), true, nil
}

// Put implements Cache as an upsert on entity_key.
func (p *Postgres) Put(ctx context.Context, key, hash string, vec []float32) error {
	if key == "" {
		return ErrEmptyKey
	}
	row := embeddingRow{
		EntityKey:   key,
		ContentHash: hash,
		Embedding:   pgvector.NewVector(vec),
		UpdatedAt:   time.Now().UTC(),
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_hash", "embedding", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		metrics.RecordCacheOperation("postgres", "put", "error")
		return fmt.Errorf("cache: postgres put %s: %w", key, err)
	}
	metrics.RecordCacheOperation("postgres", "put", "ok")
	return nil
}
