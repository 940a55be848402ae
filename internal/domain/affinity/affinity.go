// Package affinity scores whether an event targets a user's major.
package affinity

import (
	"strings"

	"github.com/okian/eventrank/internal/domain/model"
)

// DefaultBonus is awarded on a match when no bonus is configured.
const DefaultBonus = 1.0

// Scorer awards a fixed bonus when an event is open to all majors or lists the
// profile's major.
type Scorer struct {
	bonus            float64
	emptyTargetsOpen bool
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithBonus sets the bonus awarded on a match. Non-positive values are ignored.
func WithBonus(b float64) Option {
	return func(s *Scorer) {
		if b > 0 {
			s.bonus = b
		}
	}
}

// WithEmptyTargetsOpen controls whether an event with no target majors is open to all.
func WithEmptyTargetsOpen(open bool) Option {
	return func(s *Scorer) {
		s.emptyTargetsOpen = open
	}
}

// New creates a Scorer. Empty target lists are open by default.
func New(opts ...Option) *Scorer {
	s := &Scorer{bonus: DefaultBonus, emptyTargetsOpen: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bonus returns the configured match bonus.
func (s *Scorer) Bonus() float64 { return s.bonus }

// Score returns the bonus and true on a match, otherwise 0 and false.
// Comparison trims whitespace and ignores case.
func (s *Scorer) Score(profileMajor string, targetMajors []string) (float64, bool) {
	if s.matches(strings.TrimSpace(profileMajor), targetMajors) {
		return s.bonus, true
	}
	return 0, false
}

func (s *Scorer) matches(major string, targets []string) bool {
	open := true
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		open = false
		if strings.EqualFold(t, model.TargetAll) {
			return true
		}
		if major != "" && strings.EqualFold(t, major) {
			return true
		}
	}
	return open && s.emptyTargetsOpen
}
