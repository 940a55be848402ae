package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/eventrank/internal/domain/types"
	"github.com/okian/eventrank/pkg/logger"
)

const (
	directoryPermission = 0o750
	drainPollInterval   = 500 * time.Millisecond
)

// ErrVerification is returned when served recommendations break the ranking order.
var ErrVerification = errors.New("recommendation verification failed")

// Run executes the complete load test and returns its statistics.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	stats := &Stats{StartTime: time.Now()}
	client := newClient(cfg)

	log.Info(ctx, "starting load test",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("events", cfg.NumEvents),
		logger.Int("users", len(cfg.Users)),
		logger.Int("workers", cfg.Workers))

	if err := checkHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	events := generateEvents(cfg.NumEvents)
	stats.EventsGenerated = len(events)

	submitEvents(ctx, cfg, client, events, stats, log)
	log.Info(ctx, "event submission completed",
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("rejected", stats.EventsRejected),
		logger.Int("failed", stats.EventsFailed))

	remaining, err := waitForDrain(ctx, client, cfg.DrainWait, drainPollInterval)
	if err != nil {
		return stats, fmt.Errorf("wait for queue: %w", err)
	}
	stats.RemainingInQueue = remaining
	stats.QueueDrained = remaining == 0
	if !stats.QueueDrained {
		log.Warn(ctx, "queue not drained", logger.Int("remaining", remaining))
	}

	lists := fetchRecommendations(ctx, cfg, client, stats, log)
	violations := verifyResults(lists, cfg.TopN, stats)
	for _, v := range violations {
		log.Error(ctx, "ranking order violated", logger.Error(v))
	}

	if cfg.OutputFile != "" {
		if err := saveEvents(cfg.OutputFile, events); err != nil {
			log.Warn(ctx, "failed to save events", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logFinalStats(ctx, stats, log)

	if len(violations) > 0 {
		return stats, fmt.Errorf("%w: %d violations", ErrVerification, len(violations))
	}
	return stats, nil
}

// saveEvents writes the generated requests as a JSON array.
func saveEvents(filename string, events []types.EmbeddingRequest) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}

func logFinalStats(ctx context.Context, stats *Stats, log logger.Logger) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.EventsGenerated) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("events_generated", stats.EventsGenerated),
		logger.Int("events_accepted", stats.EventsAccepted),
		logger.Int("events_duplicate", stats.EventsDuplicate),
		logger.Int("events_rejected", stats.EventsRejected),
		logger.Int("events_failed", stats.EventsFailed),
		logger.Bool("queue_drained", stats.QueueDrained),
		logger.Int("users_fetched", stats.UsersFetched),
		logger.Int("users_failed", stats.UsersFailed),
		logger.Int("recommendations", stats.Recommendations),
		logger.Int("degraded_items", stats.DegradedItems),
		logger.Int("order_violations", stats.OrderViolations),
		logger.Duration("duration", stats.Duration),
		logger.Float64("events_per_second", perSecond))
}
