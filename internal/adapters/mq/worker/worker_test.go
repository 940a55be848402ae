package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/eventrank/internal/adapters/mq/queue"
	worker "github.com/okian/eventrank/internal/adapters/mq/worker"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 16)}
}

func (mq *mockQueue) Dequeue(_ context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockEmbedder struct {
	mu       sync.Mutex
	errs     map[string]error
	inFlight int32
	peak     int32
	delay    time.Duration
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{errs: make(map[string]error)}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		p := atomic.LoadInt32(&m.peak)
		if n <= p || atomic.CompareAndSwapInt32(&m.peak, p, n) {
			break
		}
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	err := m.errs[text]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (m *mockEmbedder) setError(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[text] = err
}

type mockStore struct {
	mu   sync.Mutex
	vecs map[string][]float32
	err  error
}

func newMockStore() *mockStore {
	return &mockStore{vecs: make(map[string][]float32)}
}

func (s *mockStore) Put(_ context.Context, key, hash string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.vecs[key+"@"+hash] = vec
	return nil
}

func (s *mockStore) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *mockStore) get(key, hash string) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vecs[key+"@"+hash]
	return v, ok
}

type outcome struct {
	key string
	err error
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with a completion hook", t, func() {
		q := newMockQueue()
		emb := newMockEmbedder()
		store := newMockStore()
		done := make(chan outcome, 8)

		w := worker.NewInMemoryWorker(q, emb, store,
			worker.WithName("test-worker"),
			worker.WithCompletionHook(func(_ context.Context, j queue.Job, err error) {
				done <- outcome{key: j.Key, err: err}
			}),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is processed", func() {
			q.jobs <- queue.Job{Key: "event:e1", Hash: "h1", Text: "robots"}
			got := <-done

			convey.Convey("Then the vector should be stored under key and hash", func() {
				convey.So(got.err, convey.ShouldBeNil)
				vec, ok := store.get("event:e1", "h1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(vec, convey.ShouldResemble, []float32{6, 1})
			})
		})

		convey.Convey("When embedding fails", func() {
			emb.setError("broken", errors.New("upstream down"))
			q.jobs <- queue.Job{Key: "event:e2", Hash: "h2", Text: "broken"}
			got := <-done

			convey.Convey("Then the hook should receive the error and nothing is stored", func() {
				convey.So(got.err, convey.ShouldNotBeNil)
				convey.So(got.key, convey.ShouldEqual, "event:e2")
				_, ok := store.get("event:e2", "h2")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When storing fails", func() {
			store.setError(errors.New("cache offline"))
			q.jobs <- queue.Job{Key: "event:e3", Hash: "h3", Text: "fine"}
			got := <-done

			convey.Convey("Then the hook should receive the store error", func() {
				convey.So(got.err, convey.ShouldNotBeNil)
				convey.So(got.err.Error(), convey.ShouldContainSubstring, "cache offline")
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then shutting down again should not panic", func() {
				convey.So(func() { _ = w.Shutdown(shutdownCtx) }, convey.ShouldNotPanic)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		q := newMockQueue()
		emb := newMockEmbedder()
		store := newMockStore()

		var processed int32
		pool := worker.NewPool(3, q, emb, store,
			worker.WithCompletionHook(func(context.Context, queue.Job, error) {
				atomic.AddInt32(&processed, 1)
			}),
		)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When several jobs are queued", func() {
			for _, id := range []string{"a", "b", "c", "d"} {
				q.jobs <- queue.Job{Key: "event:" + id, Hash: "h", Text: id}
			}

			deadline := time.Now().Add(2 * time.Second)
			for atomic.LoadInt32(&processed) < 4 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}

			convey.Convey("Then every job should be stored", func() {
				for _, id := range []string{"a", "b", "c", "d"} {
					_, ok := store.get("event:"+id, "h")
					convey.So(ok, convey.ShouldBeTrue)
				}
			})

			convey.Convey("And shutdown should close the queue and return", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a pool with slow workers and a backlog", t, func() {
		q := newMockQueue()
		emb := newMockEmbedder()
		emb.delay = 5 * time.Millisecond
		store := newMockStore()

		var processed int32
		pool := worker.NewPool(2, q, emb, store,
			worker.WithCompletionHook(func(context.Context, queue.Job, error) {
				atomic.AddInt32(&processed, 1)
			}),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		for _, id := range keys {
			q.jobs <- queue.Job{Key: "event:" + id, Hash: "h", Text: id}
		}

		convey.Convey("When the pool is shut down immediately", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then every queued job should still be processed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(atomic.LoadInt32(&processed), convey.ShouldEqual, len(keys))
				for _, id := range keys {
					_, ok := store.get("event:"+id, "h")
					convey.So(ok, convey.ShouldBeTrue)
				}
			})

			convey.Convey("Then a second shutdown should not panic", func() {
				convey.So(func() { _ = pool.Shutdown(shutdownCtx) }, convey.ShouldNotPanic)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockEmbedder(), newMockStore())

		convey.Convey("Then the pool should default to at least one worker", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}

func TestRunBatch(t *testing.T) {
	convey.Convey("Given a batch of jobs", t, func() {
		emb := newMockEmbedder()
		emb.delay = 10 * time.Millisecond
		jobs := []queue.Job{
			{Key: "event:e1", Text: "one"},
			{Key: "event:e2", Text: "broken"},
			{Key: "event:e3", Text: "three"},
			{Key: "event:e4", Text: "four"},
			{Key: "event:e5", Text: "five"},
		}
		emb.setError("broken", errors.New("bad input"))

		convey.Convey("When run with concurrency two", func() {
			results := worker.RunBatch(context.Background(), emb, jobs, 2)

			convey.Convey("Then results should follow input order", func() {
				convey.So(results, convey.ShouldHaveLength, 5)
				for i, r := range results {
					convey.So(r.Key, convey.ShouldEqual, jobs[i].Key)
				}
			})

			convey.Convey("Then one failure should not affect the others", func() {
				convey.So(results[1].Err, convey.ShouldNotBeNil)
				convey.So(results[0].Err, convey.ShouldBeNil)
				convey.So(results[2].Vec, convey.ShouldResemble, []float32{5, 1})
				convey.So(results[4].Err, convey.ShouldBeNil)
			})

			convey.Convey("Then no more than two requests should be in flight", func() {
				convey.So(atomic.LoadInt32(&emb.peak), convey.ShouldBeLessThanOrEqualTo, 2)
			})
		})

		convey.Convey("When the context is already canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			results := worker.RunBatch(ctx, emb, jobs, 2)

			convey.Convey("Then every job should report an error", func() {
				for _, r := range results {
					convey.So(r.Err, convey.ShouldNotBeNil)
				}
			})
		})

		convey.Convey("When the batch is empty", func() {
			convey.So(worker.RunBatch(context.Background(), emb, nil, 4), convey.ShouldBeEmpty)
		})
	})
}
