package catalog

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/eventrank/internal/domain/model"
)

// Snapshot is the YAML layout of an offline catalog export.
type Snapshot struct {
	Profiles []SnapshotProfile `yaml:"profiles"`
	Events   []SnapshotEvent   `yaml:"events"`
}

// SnapshotProfile is one profile entry.
type SnapshotProfile struct {
	ID            string    `yaml:"id"`
	Major         string    `yaml:"major"`
	Interests     string    `yaml:"interests"`
	Embedding     []float32 `yaml:"embedding,omitempty"`
	EmbeddingHash string    `yaml:"embedding_hash,omitempty"`
}

// SnapshotEvent is one event entry.
type SnapshotEvent struct {
	ID            string    `yaml:"id"`
	Title         string    `yaml:"title"`
	Description   string    `yaml:"description"`
	Category      string    `yaml:"category"`
	TargetMajors  []string  `yaml:"target_majors"`
	Tags          []string  `yaml:"tags"`
	Date          time.Time `yaml:"date"`
	Embedding     []float32 `yaml:"embedding,omitempty"`
	EmbeddingHash string    `yaml:"embedding_hash,omitempty"`
}

// LoadSnapshot reads a YAML snapshot file into a Memory catalog.
func LoadSnapshot(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open snapshot: %w", err)
	}
	defer f.Close()
	return ParseSnapshot(f)
}

// ParseSnapshot decodes a YAML snapshot into a Memory catalog.
func ParseSnapshot(r io.Reader) (*Memory, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("catalog: decode snapshot: %w", err)
	}

	profiles := make([]model.UserProfile, 0, len(s.Profiles))
	for i, p := range s.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog: profile %d has no id", i)
		}
		major := p.Major
		if major == "" {
			major = model.MajorGeneral
		}
		profiles = append(profiles, model.UserProfile{
			ID:            p.ID,
			Major:         major,
			Interests:     p.Interests,
			Embedding:     p.Embedding,
			EmbeddingHash: p.EmbeddingHash,
		})
	}

	events := make([]model.EventRecord, 0, len(s.Events))
	for i, e := range s.Events {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog: event %d has no id", i)
		}
		events = append(events, model.EventRecord{
			ID:            e.ID,
			Title:         e.Title,
			Description:   e.Description,
			Category:      e.Category,
			TargetMajors:  e.TargetMajors,
			Tags:          e.Tags,
			Date:          e.Date,
			Embedding:     e.Embedding,
			EmbeddingHash: e.EmbeddingHash,
		})
	}
	return NewMemory(profiles, events), nil
}
