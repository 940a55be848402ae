// Package worker embeds queued jobs and writes the vectors to the cache.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/eventrank/internal/adapters/mq/queue"
	"github.com/okian/eventrank/pkg/logger"
	"github.com/okian/eventrank/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Embedder computes an embedding for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store persists computed embeddings.
type Store interface {
	Put(ctx context.Context, key, hash string, vec []float32) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// CompletionFunc is called after every job with its outcome.
type CompletionFunc func(ctx context.Context, job queue.Job, err error)

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	embedder Embedder
	store    Store
	name     string
	onDone   CompletionFunc

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, embedder Embedder, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		embedder: embedder,
		store:    store,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			err := w.processJob(ctx, job)
			if err != nil {
				w.logger.Error(ctx, "embedding job failed",
					logger.String("key", job.Key),
					logger.Error(err))
			}
			if w.onDone != nil {
				w.onDone(ctx, job, err)
			}
		}
	}
}

// Shutdown stops the worker after its current job. Jobs still queued are
// left for other workers. Calling it more than once is safe.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) processJob(ctx context.Context, job queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	vec, err := w.embedder.Embed(ctx, job.Text)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "embed_error")
		return fmt.Errorf("embed %s: %w", job.Key, err)
	}

	if err := w.store.Put(ctx, job.Key, job.Hash, vec); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store %s: %w", job.Key, err)
	}

	metrics.RecordEmbeddingJobApplied()
	w.logger.Debug(ctx, "embedding stored",
		logger.String("key", job.Key),
		logger.Duration("waited", start.Sub(job.EnqueuedAt)))
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. Options apply to every worker.
func NewPool(workerCount int, q Queue, embedder Embedder, store Store, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, embedder, store, workerOpts...)
		pool.logger = pool.workers[i].logger
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to process every job
// still buffered in it. Workers that have not finished when ctx or the pool
// timeout expires are told to stop after their current job. A queue that
// cannot be closed is not drained.
func (p *Pool) Shutdown(ctx context.Context) error {
	drain := false
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		} else {
			drain = true
		}
	}
	if !drain {
		for _, w := range p.workers {
			w.stop()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			w.stop()
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
