package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/eventrank/internal/domain/types"
	"github.com/okian/eventrank/pkg/logger"
)

const progressInterval = time.Second

func newClient(cfg *Config) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
}

// checkHealth verifies the service answers on /healthz.
func checkHealth(ctx context.Context, client *resty.Client) error {
	resp, err := client.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("connect to service: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode())
	}
	return nil
}

// submitEvents posts every request with cfg.Workers concurrent workers.
func submitEvents(ctx context.Context, cfg *Config, client *resty.Client, events []types.EmbeddingRequest, stats *Stats, log logger.Logger) {
	var (
		accepted, duplicate, rejected, failed int64
		submitted                             int64
		lastReport                            atomic.Int64
	)

	eventChan := make(chan types.EmbeddingRequest, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range eventChan {
				switch submitSingleEvent(ctx, client, event) {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				n := atomic.AddInt64(&submitted, 1)

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if cfg.Verbose && now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "submission progress",
						logger.Int("submitted", int(n)),
						logger.Int("total", len(events)))
				}
			}
		}()
	}

	go func() {
		defer close(eventChan)
		for _, event := range events {
			select {
			case <-ctx.Done():
				return
			case eventChan <- event:
			}
		}
	}()

	wg.Wait()

	stats.EventsAccepted = int(accepted)
	stats.EventsDuplicate = int(duplicate)
	stats.EventsRejected = int(rejected)
	stats.EventsFailed = int(failed)
}

func submitSingleEvent(ctx context.Context, client *resty.Client, event types.EmbeddingRequest) submitOutcome {
	resp, err := client.R().
		SetContext(ctx).
		SetBody(event).
		Post("/embeddings/events")
	if err != nil {
		return outcomeFailed
	}

	switch resp.StatusCode() {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		return outcomeDuplicate
	case http.StatusTooManyRequests:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

// waitForDrain polls /stats until the embedding queue is empty or wait elapses.
// It returns the last observed queue length.
func waitForDrain(ctx context.Context, client *resty.Client, wait, interval time.Duration) (int, error) {
	deadline := time.Now().Add(wait)
	for {
		var s types.Stats
		resp, err := client.R().SetContext(ctx).SetResult(&s).Get("/stats")
		if err != nil {
			return -1, fmt.Errorf("read stats: %w", err)
		}
		if resp.IsError() {
			return -1, fmt.Errorf("stats returned status %d", resp.StatusCode())
		}
		if s.QueueLength == 0 || !time.Now().Before(deadline) {
			return s.QueueLength, nil
		}

		select {
		case <-ctx.Done():
			return s.QueueLength, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// fetchRecommendations retrieves every user's list concurrently. Lists are
// returned in the order of users; failed users have a nil entry.
func fetchRecommendations(ctx context.Context, cfg *Config, client *resty.Client, stats *Stats, log logger.Logger) [][]types.Recommendation {
	out := make([][]types.Recommendation, len(cfg.Users))
	var (
		fetched, failed int64
		wg              sync.WaitGroup
	)

	idx := make(chan int)
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				items, err := fetchSingleUser(ctx, client, cfg.Users[i], cfg.TopN)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "recommendation fetch failed",
						logger.String("user_id", cfg.Users[i]),
						logger.Error(err))
					continue
				}
				out[i] = items
				atomic.AddInt64(&fetched, 1)
			}
		}()
	}

feed:
	for i := range cfg.Users {
		select {
		case <-ctx.Done():
			break feed
		case idx <- i:
		}
	}
	close(idx)
	wg.Wait()

	stats.UsersFetched = int(fetched)
	stats.UsersFailed = int(failed)
	return out
}

func fetchSingleUser(ctx context.Context, client *resty.Client, userID string, topN int) ([]types.Recommendation, error) {
	var list recommendationList
	req := client.R().
		SetContext(ctx).
		SetPathParam("user_id", userID).
		SetResult(&list)
	if topN > 0 {
		req.SetQueryParam("limit", strconv.Itoa(topN))
	}

	resp, err := req.Get("/recommendations/{user_id}")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return list.Items, nil
}
