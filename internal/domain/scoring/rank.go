package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/okian/eventrank/internal/domain/model"
)

// scoreScale controls fixed-point scaling from float64 so totals that differ
// only by accumulated float noise compare as equal.
const scoreScale = 1_000_000_000 // 9 decimal places

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return scoreFP(math.MaxInt64)
	case math.IsInf(x, -1):
		return scoreFP(math.MinInt64)
	}
	scaled := x * scoreScale
	if scaled > float64(math.MaxInt64) {
		return scoreFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(scaled))
}

// rankedBefore orders by total DESC, then date ASC, then id ASC.
func rankedBefore(a, b model.ScoreResult, da, db time.Time) bool {
	sa, sb := toFixedPoint(a.TotalScore), toFixedPoint(b.TotalScore)
	if sa != sb {
		return sa > sb
	}
	if !da.Equal(db) {
		return da.Before(db)
	}
	return a.EventID < b.EventID
}

// Rank returns results ordered by total score descending, breaking ties by
// event date (earliest first) and then event id. When topN > 0 the output is
// truncated to topN. The input slice is not modified.
func Rank(results []model.ScoreResult, dates map[string]time.Time, topN int) []model.ScoreResult {
	out := make([]model.ScoreResult, len(results))
	copy(out, results)

	sort.SliceStable(out, func(i, j int) bool {
		return rankedBefore(out[i], out[j], dates[out[i].EventID], dates[out[j].EventID])
	})
	return truncate(out, topN)
}

// RankRecommendations orders recommendations the same way as Rank, using each
// event's own date.
func RankRecommendations(recs []model.Recommendation, topN int) []model.Recommendation {
	out := make([]model.Recommendation, len(recs))
	copy(out, recs)

	sort.SliceStable(out, func(i, j int) bool {
		return rankedBefore(out[i].Score, out[j].Score, out[i].Event.Date, out[j].Event.Date)
	})
	return truncate(out, topN)
}

func truncate[T any](s []T, topN int) []T {
	if topN > 0 && len(s) > topN {
		return s[:topN]
	}
	return s
}
