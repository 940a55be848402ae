package model

// Reasons attached to a ScoreResult when one of its components was degraded.
const (
	ReasonProfileEmbeddingMissing = "profile_embedding_missing"
	ReasonEventEmbeddingMissing   = "event_embedding_missing"
	ReasonInvalidDimension        = "invalid_dimension"
	ReasonNoAffinity              = "no_affinity"
)

// ScoreResult is computed per request and never persisted.
type ScoreResult struct {
	EventID     string
	MajorScore  float64 // 0 or the configured bonus
	VectorScore float64 // [0, 1]
	TotalScore  float64
	Tags        []string

	MajorMatched   bool
	VectorDegraded bool
	DegradedReason string
}

// Recommendation pairs an event with its score for presentation.
type Recommendation struct {
	Event EventRecord
	Score ScoreResult
}
