// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Dimension is the embedding length produced by the inference model.
const Dimension = 384

// MajorGeneral is the sentinel major for profiles outside the major catalog.
const MajorGeneral = "general"

// TargetAll in an event's target majors opens it to every major.
const TargetAll = "Umum"

// Cache key prefixes for profile and event embeddings.
const (
	profileKeyPrefix = "profile:"
	eventKeyPrefix   = "event:"
)

// UserProfile is the user side of a match.
type UserProfile struct {
	ID            string
	Major         string
	Interests     string    // comma-separated interest terms
	Embedding     []float32 // stored embedding, may be nil
	EmbeddingHash string    // hash of the text Embedding was computed from
}

// CacheKey returns the embedding cache key for the profile.
func (p UserProfile) CacheKey() string { return ProfileKey(p.ID) }

// EmbeddingText returns the normalized interests text that gets embedded.
func (p UserProfile) EmbeddingText() string { return NormalizeInterests(p.Interests) }

// EventRecord is a candidate event.
type EventRecord struct {
	ID            string
	Title         string
	Description   string
	Category      string
	TargetMajors  []string
	Tags          []string
	Date          time.Time
	Embedding     []float32
	EmbeddingHash string
}

// CacheKey returns the embedding cache key for the event.
func (e EventRecord) CacheKey() string { return EventKey(e.ID) }

// EmbeddingText returns the description, falling back to the title when the
// description is blank.
func (e EventRecord) EmbeddingText() string {
	if d := strings.TrimSpace(e.Description); d != "" {
		return d
	}
	return strings.TrimSpace(e.Title)
}

// ProfileKey builds the cache key for a profile id.
func ProfileKey(id string) string { return profileKeyPrefix + id }

// EventKey builds the cache key for an event id.
func EventKey(id string) string { return eventKeyPrefix + id }
