package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/okian/eventrank/internal/domain/model"
)

type profileRow struct {
	ID            string           `gorm:"primaryKey;column:id;size:64"`
	Major         string           `gorm:"column:major;size:128"`
	Interests     string           `gorm:"column:interests"`
	Embedding     *pgvector.Vector `gorm:"column:embedding;type:vector(384)"`
	EmbeddingHash string           `gorm:"column:embedding_hash;size:64"`
}

func (profileRow) TableName() string { return "user_profiles" }

type eventRow struct {
	ID            string           `gorm:"primaryKey;column:id;size:64"`
	Title         string           `gorm:"column:title"`
	Description   string           `gorm:"column:description"`
	Category      string           `gorm:"column:category;size:128"`
	TargetMajors  pq.StringArray   `gorm:"column:target_majors;type:text[]"`
	Tags          pq.StringArray   `gorm:"column:tags;type:text[]"`
	EventDate     time.Time        `gorm:"column:event_date;index"`
	Embedding     *pgvector.Vector `gorm:"column:embedding;type:vector(384)"`
	EmbeddingHash string           `gorm:"column:embedding_hash;size:64"`
}

func (eventRow) TableName() string { return "events" }

// Postgres is a Catalog over the user_profiles and events tables.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres wraps an open gorm connection.
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the catalog tables when missing. Production schemas are
// owned by the event service; this is for local setups and tests.
func (p *Postgres) Migrate(ctx context.Context) error {
	db := p.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("catalog: create vector extension: %w", err)
	}
	if err := db.AutoMigrate(&profileRow{}, &eventRow{}); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// GetProfile implements Catalog.
func (p *Postgres) GetProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	var row profileRow
	err := p.db.WithContext(ctx).Where("id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("catalog: get profile %s: %w", userID, err)
	}

	major := row.Major
	if major == "" {
		major = model.MajorGeneral
	}
	return model.UserProfile{
		ID:            row.ID,
		Major:         major,
		Interests:     row.Interests,
		Embedding:     vectorSlice(row.Embedding),
		EmbeddingHash: row.EmbeddingHash,
	}, nil
}

// GetCandidateEvents implements Catalog.
func (p *Postgres) GetCandidateEvents(ctx context.Context, f Filter) ([]model.EventRecord, error) {
	q := p.db.WithContext(ctx).Model(&eventRow{})
	if !f.From.IsZero() {
		q = q.Where("event_date >= ?", f.From)
	}
	q = q.Order("event_date ASC").Order("id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []eventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("catalog: list events: %w", err)
	}

	out := make([]model.EventRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.EventRecord{
			ID:            r.ID,
			Title:         r.Title,
			Description:   r.Description,
			Category:      r.Category,
			TargetMajors:  []string(r.TargetMajors),
			Tags:          []string(r.Tags),
			Date:          r.EventDate,
			Embedding:     vectorSlice(r.Embedding),
			EmbeddingHash: r.EmbeddingHash,
		})
	}
	return out, nil
}

// upsertProfile and upsertEvent seed tables in tests.
func (p *Postgres) upsertProfile(ctx context.Context, u model.UserProfile) error {
	return p.db.WithContext(ctx).Save(&profileRow{
		ID:            u.ID,
		Major:         u.Major,
		Interests:     u.Interests,
		Embedding:     vectorPtr(u.Embedding),
		EmbeddingHash: u.EmbeddingHash,
	}).Error
}

func (p *Postgres) upsertEvent(ctx context.Context, e model.EventRecord) error {
	return p.db.WithContext(ctx).Save(&eventRow{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Category:      e.Category,
		TargetMajors:  pq.StringArray(e.TargetMajors),
		Tags:          pq.StringArray(e.Tags),
		EventDate:     e.Date,
		Embedding:     vectorPtr(e.Embedding),
		EmbeddingHash: e.EmbeddingHash,
	}).Error
}

func vectorSlice(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	return v.Slice()
}

func vectorPtr(v []float32) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	pv := pgvector.NewVector(v)
	return &pv
}
