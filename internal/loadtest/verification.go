package loadtest

import (
	"fmt"

	"github.com/okian/eventrank/internal/domain/types"
)

// verifyList checks one user's list against the ranking order: totals
// non-increasing, ties broken by earlier date then event id, ranks numbered
// from 1, scores in [0,1] and at most topN items.
func verifyList(items []types.Recommendation, topN int) []error {
	var errs []error

	if topN > 0 && len(items) > topN {
		errs = append(errs, fmt.Errorf("got %d items, limit was %d", len(items), topN))
	}

	for i, it := range items {
		if it.Rank != i+1 {
			errs = append(errs, fmt.Errorf("item %d: rank %d, want %d", i, it.Rank, i+1))
		}
		for _, sc := range []struct {
			name string
			v    float64
		}{{"major", it.MajorScore}, {"vector", it.VectorScore}, {"total", it.TotalScore}} {
			if sc.v < 0 || sc.v > 1 {
				errs = append(errs, fmt.Errorf("item %s: %s score %.3f outside [0,1]", it.EventID, sc.name, sc.v))
			}
		}
		if i == 0 {
			continue
		}

		prev := items[i-1]
		switch {
		case it.TotalScore > prev.TotalScore:
			errs = append(errs, fmt.Errorf("item %s: total %.3f above previous %.3f", it.EventID, it.TotalScore, prev.TotalScore))
		case it.TotalScore == prev.TotalScore && it.Date.Before(prev.Date):
			errs = append(errs, fmt.Errorf("item %s: tie not ordered by date", it.EventID))
		case it.TotalScore == prev.TotalScore && it.Date.Equal(prev.Date) && it.EventID < prev.EventID:
			errs = append(errs, fmt.Errorf("item %s: tie not ordered by event id", it.EventID))
		}
	}
	return errs
}

// verifyResults checks every fetched list and accumulates counts into stats.
func verifyResults(lists [][]types.Recommendation, topN int, stats *Stats) []error {
	var all []error
	for _, items := range lists {
		stats.Recommendations += len(items)
		for _, it := range items {
			if it.Degraded {
				stats.DegradedItems++
			}
		}
		errs := verifyList(items, topN)
		stats.OrderViolations += len(errs)
		all = append(all, errs...)
	}
	return all
}
