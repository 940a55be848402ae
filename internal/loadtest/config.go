// Package loadtest drives a running eventrank server: it submits synthetic
// event embeddings, waits for the queue to drain and checks that the
// recommendations served afterwards obey the ranking order.
package loadtest

import (
	"time"

	"github.com/okian/eventrank/internal/domain/types"
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumEvents  int           // Number of embedding requests to generate
	Users      []string      // Users whose recommendations are fetched and verified
	TopN       int           // limit passed to /recommendations
	Workers    int           // Number of concurrent HTTP workers
	Timeout    time.Duration // HTTP request timeout
	DrainWait  time.Duration // Max time to wait for the embedding queue to empty
	OutputFile string        // Where to write the generated requests; empty skips
	Verbose    bool
}

// Stats holds test statistics.
type Stats struct {
	EventsGenerated  int
	EventsAccepted   int
	EventsDuplicate  int
	EventsRejected   int // 429 backpressure
	EventsFailed     int
	UsersFetched     int
	UsersFailed      int
	Recommendations  int
	DegradedItems    int
	OrderViolations  int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	QueueDrained     bool
	RemainingInQueue int
}

// recommendationList mirrors the body of GET /recommendations/{id}.
type recommendationList struct {
	UserID string                 `json:"user_id"`
	Items  []types.Recommendation `json:"items"`
}

// submitOutcome classifies one POST /embeddings/events call.
type submitOutcome int

const (
	outcomeFailed submitOutcome = iota
	outcomeAccepted
	outcomeDuplicate
	outcomeRejected
)
