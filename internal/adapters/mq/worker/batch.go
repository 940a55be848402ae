package worker

import (
	"context"
	"sync"

	"github.com/okian/eventrank/internal/adapters/mq/queue"
)

// Result is the outcome of one job in a batch, in input order.
type Result struct {
	Key string
	Vec []float32
	Err error
}

// RunBatch embeds every job with at most concurrency requests in flight.
// Failures are per job; one failing job never affects the others. Jobs not
// started before ctx is done get ctx.Err().
func RunBatch(ctx context.Context, embedder Embedder, jobs []queue.Job, concurrency int) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(jobs) {
		concurrency = len(jobs)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				j := jobs[idx]
				vec, err := embedder.Embed(ctx, j.Text)
				results[idx] = Result{Key: j.Key, Vec: vec, Err: err}
			}
		}()
	}

	next := 0
feed:
	for ; next < len(jobs); next++ {
		select {
		case indexes <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	for i := next; i < len(jobs); i++ {
		results[i] = Result{Key: jobs[i].Key, Err: ctx.Err()}
	}
	return results
}
