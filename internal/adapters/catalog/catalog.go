// Package catalog reads user profiles and candidate events. Event CRUD lives
// elsewhere; this side only reads.
package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/okian/eventrank/internal/domain/model"
)

// ErrNotFound is returned by GetProfile for unknown users.
var ErrNotFound = errors.New("catalog: not found")

// Filter selects candidate events.
type Filter struct {
	// From excludes events dated before it. Zero means no lower bound.
	From time.Time
	// Limit caps the number of events returned. Zero means no cap.
	Limit int
}

// Catalog is the read-only profile and event source.
type Catalog interface {
	GetProfile(ctx context.Context, userID string) (model.UserProfile, error)
	GetCandidateEvents(ctx context.Context, f Filter) ([]model.EventRecord, error)
}

// Memory is a Catalog over a fixed snapshot. It is safe for concurrent reads.
type Memory struct {
	profiles map[string]model.UserProfile
	events   []model.EventRecord // sorted by date, then id
}

// NewMemory builds a catalog from the given records.
func NewMemory(profiles []model.UserProfile, events []model.EventRecord) *Memory {
	m := &Memory{
		profiles: make(map[string]model.UserProfile, len(profiles)),
		events:   make([]model.EventRecord, len(events)),
	}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	copy(m.events, events)
	sort.SliceStable(m.events, func(i, j int) bool {
		a, b := m.events[i], m.events[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
	return m
}

// GetProfile implements Catalog. The returned profile does not share memory
// with the snapshot.
func (m *Memory) GetProfile(_ context.Context, userID string) (model.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return model.UserProfile{}, ErrNotFound
	}
	p.Embedding = cloneVec(p.Embedding)
	return p, nil
}

// GetCandidateEvents implements Catalog.
func (m *Memory) GetCandidateEvents(_ context.Context, f Filter) ([]model.EventRecord, error) {
	out := make([]model.EventRecord, 0, len(m.events))
	for _, e := range m.events {
		if !f.From.IsZero() && e.Date.Before(f.From) {
			continue
		}
		e.TargetMajors = cloneStrings(e.TargetMajors)
		e.Tags = cloneStrings(e.Tags)
		e.Embedding = cloneVec(e.Embedding)
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func cloneVec(v []float32) []float32 {
	if v == nil {
		return nil
	}
	return append([]float32(nil), v...)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
