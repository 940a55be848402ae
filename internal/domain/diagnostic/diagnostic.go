// Package diagnostic runs the scoring pipeline for one user and reports every
// intermediate value. It only reads: it never calls the embedding service and
// never writes to the cache or the catalog.
package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/eventrank/internal/adapters/catalog"
	"github.com/okian/eventrank/internal/domain/model"
	"github.com/okian/eventrank/internal/domain/scoring"
	"github.com/okian/eventrank/pkg/logger"
	"github.com/okian/eventrank/pkg/metrics"
)

// Where a vector was found.
const (
	SourceRecord  = "record"
	SourceCache   = "cache"
	SourceMissing = "missing"
)

// VectorReader is the read-only embedding lookup.
type VectorReader interface {
	Get(ctx context.Context, key, hash string) ([]float32, bool, error)
}

// Report is the output of one diagnostic run.
type Report struct {
	UserID  string           `json:"user_id"`
	Found   bool             `json:"found"`
	Profile *ProfileSnapshot `json:"profile,omitempty"`
	Weights scoring.Weights  `json:"weights"`
	Results []Entry          `json:"results"`
	Summary Summary          `json:"summary"`
}

// ProfileSnapshot is the profile as seen by the run.
type ProfileSnapshot struct {
	ID               string `json:"id"`
	Major            string `json:"major"`
	Interests        string `json:"interests"`
	ContentHash      string `json:"content_hash"`
	EmbeddingSource  string `json:"embedding_source"`
	EmbeddingPresent bool   `json:"embedding_present"`
}

// Entry is one ranked candidate with its component scores.
type Entry struct {
	Rank            int       `json:"rank"`
	EventID         string    `json:"event_id"`
	Title           string    `json:"title"`
	Date            time.Time `json:"date"`
	TargetMajors    []string  `json:"target_majors"`
	Tags            []string  `json:"tags"`
	MajorScore      float64   `json:"major_score"`
	VectorScore     float64   `json:"vector_score"`
	TotalScore      float64   `json:"total_score"`
	MajorMatched    bool      `json:"major_matched"`
	VectorDegraded  bool      `json:"vector_degraded"`
	EmbeddingSource string    `json:"embedding_source"`
	Reasons         []string  `json:"reasons,omitempty"`
}

// Summary counts degraded components across the run.
type Summary struct {
	Candidates       int    `json:"candidates"`
	MajorMatched     int    `json:"major_matched"`
	VectorDegraded   int    `json:"vector_degraded"`
	ProfileEmbedding string `json:"profile_embedding"`
}

// Harness wires the catalog, the cache reader and a combiner.
type Harness struct {
	catalog  catalog.Catalog
	vectors  VectorReader
	combiner *scoring.Combiner
	now      func() time.Time
	logger   logger.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithClock sets the clock used to select upcoming candidates.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets the harness logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a Harness.
func New(c catalog.Catalog, vectors VectorReader, combiner *scoring.Combiner, opts ...Option) *Harness {
	h := &Harness{
		catalog:  c,
		vectors:  vectors,
		combiner: combiner,
		now:      time.Now,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run scores every upcoming candidate for userID. An unknown user yields an
// empty report and no error.
func (h *Harness) Run(ctx context.Context, userID string) (Report, error) {
	metrics.RecordDiagnosticRun()

	rep := Report{UserID: userID, Weights: h.combiner.Weights(), Results: []Entry{}}

	profile, err := h.catalog.GetProfile(ctx, userID)
	if errors.Is(err, catalog.ErrNotFound) {
		rep.Summary.ProfileEmbedding = SourceMissing
		return rep, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("diagnostic: load profile: %w", err)
	}

	text := profile.EmbeddingText()
	hash := model.ContentHash(text)
	profileVec, profileSrc := Lookup(ctx, h.vectors, profile.CacheKey(), hash, profile.Embedding, profile.EmbeddingHash)

	rep.Found = true
	rep.Profile = &ProfileSnapshot{
		ID:               profile.ID,
		Major:            profile.Major,
		Interests:        text,
		ContentHash:      hash,
		EmbeddingSource:  profileSrc,
		EmbeddingPresent: profileVec != nil,
	}
	rep.Summary.ProfileEmbedding = profileSrc

	events, err := h.catalog.GetCandidateEvents(ctx, catalog.Filter{From: h.now()})
	if err != nil {
		return Report{}, fmt.Errorf("diagnostic: load candidates: %w", err)
	}

	recs := make([]model.Recommendation, 0, len(events))
	sources := make(map[string]string, len(events))
	for _, e := range events {
		vec, src := Lookup(ctx, h.vectors, e.CacheKey(), model.ContentHash(e.EmbeddingText()), e.Embedding, e.EmbeddingHash)
		sources[e.ID] = src
		recs = append(recs, model.Recommendation{Event: e, Score: h.combiner.Score(profile, profileVec, e, vec)})
	}
	recs = scoring.RankRecommendations(recs, 0)

	for i, r := range recs {
		s := scoring.RoundResult(r.Score)
		entry := Entry{
			Rank:            i + 1,
			EventID:         r.Event.ID,
			Title:           r.Event.Title,
			Date:            r.Event.Date,
			TargetMajors:    r.Event.TargetMajors,
			Tags:            s.Tags,
			MajorScore:      s.MajorScore,
			VectorScore:     s.VectorScore,
			TotalScore:      s.TotalScore,
			MajorMatched:    s.MajorMatched,
			VectorDegraded:  s.VectorDegraded,
			EmbeddingSource: sources[r.Event.ID],
		}
		if s.VectorDegraded {
			entry.Reasons = append(entry.Reasons, s.DegradedReason)
			rep.Summary.VectorDegraded++
		}
		if s.MajorMatched {
			rep.Summary.MajorMatched++
		} else {
			entry.Reasons = append(entry.Reasons, model.ReasonNoAffinity)
		}
		rep.Results = append(rep.Results, entry)
	}
	rep.Summary.Candidates = len(rep.Results)

	h.logger.Debug(ctx, "diagnostic run complete",
		logger.String("user_id", userID),
		logger.Int("candidates", rep.Summary.Candidates),
		logger.Int("vector_degraded", rep.Summary.VectorDegraded))
	return rep, nil
}

// Lookup resolves a vector without computing one: the record's stored
// embedding when its hash matches, else the cache. Lookup errors count as a
// miss. The returned source is one of SourceRecord, SourceCache or
// SourceMissing.
func Lookup(ctx context.Context, vectors VectorReader, key, hash string, stored []float32, storedHash string) ([]float32, string) {
	if hash == "" {
		return nil, SourceMissing
	}
	if len(stored) > 0 && storedHash == hash {
		return stored, SourceRecord
	}
	if vectors == nil {
		return nil, SourceMissing
	}
	vec, ok, err := vectors.Get(ctx, key, hash)
	if err != nil || !ok {
		return nil, SourceMissing
	}
	return vec, SourceCache
}
