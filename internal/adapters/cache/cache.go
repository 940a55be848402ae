// Package cache stores embeddings keyed by entity and content hash so they are
// recomputed only when the underlying text changes.
package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/eventrank/pkg/metrics"
)

// ErrEmptyKey is returned when Put is called without a key.
var ErrEmptyKey = errors.New("cache: empty key")

// Reader is the read-only side of a Cache.
type Reader interface {
	// Get returns the stored vector when key exists and was computed from
	// content with the given hash. A hash mismatch is a miss.
	Get(ctx context.Context, key, hash string) ([]float32, bool, error)
}

// Cache stores embeddings by (key, content hash).
type Cache interface {
	Reader
	// Put stores vec for key, replacing any entry with a different hash.
	Put(ctx context.Context, key, hash string, vec []float32) error
}

type entry struct {
	hash string
	vec  []float32
}

// Memory is a process-local Cache. Reads take a shared lock.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// Get implements Reader. The returned slice is a copy.
func (m *Memory) Get(_ context.Context, key, hash string) ([]float32, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || e.hash != hash {
		metrics.RecordCacheOperation("memory", "get", "miss")
		return nil, false, nil
	}
	metrics.RecordCacheOperation("memory", "get", "hit")
	return cloneVec(e.vec), true, nil
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, key, hash string, vec []float32) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	m.entries[key] = entry{hash: hash, vec: cloneVec(vec)}
	m.mu.Unlock()

	metrics.RecordCacheOperation("memory", "put", "ok")
	return nil
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cloneVec(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
