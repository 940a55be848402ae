// Package types contains the JSON shapes shared by the API and the CLI.
package types

import (
	"time"

	"github.com/okian/eventrank/internal/domain/model"
)

// Recommendation is one ranked event as returned to clients.
type Recommendation struct {
	Rank         int       `json:"rank"`
	EventID      string    `json:"event_id"`
	Title        string    `json:"title"`
	Category     string    `json:"category,omitempty"`
	Date         time.Time `json:"date"`
	TargetMajors []string  `json:"target_majors"`
	Tags         []string  `json:"tags"`
	MajorScore   float64   `json:"major_score"`
	VectorScore  float64   `json:"vector_score"`
	TotalScore   float64   `json:"total_score"`
	Degraded     bool      `json:"degraded,omitempty"`
}

// FromRecommendations converts ranked recommendations, numbering them from 1.
func FromRecommendations(recs []model.Recommendation) []Recommendation {
	out := make([]Recommendation, 0, len(recs))
	for i, r := range recs {
		out = append(out, Recommendation{
			Rank:         i + 1,
			EventID:      r.Event.ID,
			Title:        r.Event.Title,
			Category:     r.Event.Category,
			Date:         r.Event.Date,
			TargetMajors: nonNil(r.Event.TargetMajors),
			Tags:         nonNil(r.Score.Tags),
			MajorScore:   r.Score.MajorScore,
			VectorScore:  r.Score.VectorScore,
			TotalScore:   r.Score.TotalScore,
			Degraded:     r.Score.VectorDegraded,
		})
	}
	return out
}

// EmbeddingRequest asks for an event's embedding to be (re)computed.
type EmbeddingRequest struct {
	EventID     string `json:"event_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// EmbeddingResponse reports whether the request was queued.
type EmbeddingResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Hash   string `json:"hash,omitempty"`
}

// Stats is the service snapshot exposed on /stats.
type Stats struct {
	QueueLength    int     `json:"queue_length"`
	QueueCapacity  int     `json:"queue_capacity"`
	Workers        int     `json:"workers"`
	DedupeSize     int64   `json:"dedupe_size"`
	CacheBackend   string  `json:"cache_backend"`
	CatalogBackend string  `json:"catalog_backend"`
	WeightMajor    float64 `json:"w_major"`
	WeightVector   float64 `json:"w_vector"`
	Bonus          float64 `json:"bonus"`
	Started        bool    `json:"started"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
