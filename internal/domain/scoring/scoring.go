// Package scoring combines major affinity and vector similarity into a single
// total and ranks candidate events by it. Everything here is pure and safe
// for concurrent use.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/eventrank/internal/domain/affinity"
	"github.com/okian/eventrank/internal/domain/model"
	"github.com/okian/eventrank/internal/domain/similarity"
)

// Default weights. A major match with zero similarity (0.6) outranks a
// perfect similarity without a match (0.4).
const (
	DefaultWeightMajor  = 0.6
	DefaultWeightVector = 0.4
	DefaultBonus        = affinity.DefaultBonus
)

// Weights configures the linear blend total = Major*major + Vector*vector.
// Bonus is the major score awarded on a match.
type Weights struct {
	Major  float64 `json:"w_major"`
	Vector float64 `json:"w_vector"`
	Bonus  float64 `json:"bonus"`
}

// DefaultWeights returns the production weights.
func DefaultWeights() Weights {
	return Weights{Major: DefaultWeightMajor, Vector: DefaultWeightVector, Bonus: DefaultBonus}
}

// Validate rejects weights that would break monotonicity.
func (w Weights) Validate() error {
	switch {
	case isBad(w.Major) || isBad(w.Vector) || isBad(w.Bonus):
		return fmt.Errorf("%w: weights must be finite", ErrInvalidWeights)
	case w.Major <= 0:
		return fmt.Errorf("%w: w_major must be positive", ErrInvalidWeights)
	case w.Vector < 0:
		return fmt.Errorf("%w: w_vector must not be negative", ErrInvalidWeights)
	case w.Bonus <= 0:
		return fmt.Errorf("%w: bonus must be positive", ErrInvalidWeights)
	}
	return nil
}

// Dominant reports whether a major match alone outweighs the best possible
// similarity, i.e. Major*Bonus > Vector.
func (w Weights) Dominant() bool {
	return w.Major*w.Bonus > w.Vector
}

// Total blends the two component scores.
func (w Weights) Total(majorScore, vectorScore float64) float64 {
	return w.Major*majorScore + w.Vector*vectorScore
}

func isBad(x float64) bool { return math.IsNaN(x) || math.IsInf(x, 0) }

// Combiner produces a ScoreResult for a profile/event pair.
type Combiner struct {
	weights          Weights
	emptyTargetsOpen bool
	affinity         *affinity.Scorer
}

// Option configures a Combiner.
type Option func(*Combiner)

// WithWeights overrides the default weights.
func WithWeights(w Weights) Option {
	return func(c *Combiner) {
		c.weights = w
	}
}

// WithEmptyTargetsOpen controls whether events without target majors match every profile.
func WithEmptyTargetsOpen(open bool) Option {
	return func(c *Combiner) {
		c.emptyTargetsOpen = open
	}
}

// NewCombiner creates a Combiner, returning an error for invalid weights.
func NewCombiner(opts ...Option) (*Combiner, error) {
	c := &Combiner{weights: DefaultWeights(), emptyTargetsOpen: true}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.weights.Validate(); err != nil {
		return nil, err
	}
	c.affinity = affinity.New(
		affinity.WithBonus(c.weights.Bonus),
		affinity.WithEmptyTargetsOpen(c.emptyTargetsOpen),
	)
	return c, nil
}

// Weights returns the active weights.
func (c *Combiner) Weights() Weights { return c.weights }

// Score computes the result for one event. A nil vector marks the side whose
// embedding could not be resolved; a vector of the wrong length is treated as
// invalid. Either way the vector score is 0 and the result is flagged as
// degraded rather than failing.
func (c *Combiner) Score(profile model.UserProfile, profileVec []float32, event model.EventRecord, eventVec []float32) model.ScoreResult {
	majorScore, matched := c.affinity.Score(profile.Major, event.TargetMajors)

	res := model.ScoreResult{
		EventID:      event.ID,
		MajorScore:   majorScore,
		MajorMatched: matched,
		Tags:         event.Tags,
	}

	switch {
	case len(profileVec) == 0:
		res.VectorDegraded, res.DegradedReason = true, model.ReasonProfileEmbeddingMissing
	case len(eventVec) == 0:
		res.VectorDegraded, res.DegradedReason = true, model.ReasonEventEmbeddingMissing
	case !model.ValidVector(profileVec) || !model.ValidVector(eventVec):
		res.VectorDegraded, res.DegradedReason = true, model.ReasonInvalidDimension
	default:
		res.VectorScore = similarity.Score(profileVec, eventVec)
	}

	res.TotalScore = c.weights.Total(res.MajorScore, res.VectorScore)
	return res
}

// Round3 rounds to three decimal places for presentation.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// RoundResult returns a copy of r with every score rounded to three decimals.
func RoundResult(r model.ScoreResult) model.ScoreResult {
	r.MajorScore = Round3(r.MajorScore)
	r.VectorScore = Round3(r.VectorScore)
	r.TotalScore = Round3(r.TotalScore)
	return r
}
