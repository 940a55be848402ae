// Package service wires the catalog, the embedding cache and client, and the
// scoring core into the operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/eventrank/internal/adapters/cache"
	"github.com/okian/eventrank/internal/adapters/catalog"
	"github.com/okian/eventrank/internal/adapters/embedding"
	"github.com/okian/eventrank/internal/adapters/mq/queue"
	"github.com/okian/eventrank/internal/adapters/mq/worker"
	"github.com/okian/eventrank/internal/domain/dedupe"
	"github.com/okian/eventrank/internal/domain/diagnostic"
	"github.com/okian/eventrank/internal/domain/model"
	"github.com/okian/eventrank/internal/domain/scoring"
	"github.com/okian/eventrank/internal/domain/types"
	"github.com/okian/eventrank/pkg/logger"
	"github.com/okian/eventrank/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Service implements recommendation, diagnostics and embedding refresh.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	catalog  catalog.Catalog
	cache    cache.Cache
	embedder embedding.Embedder

	// Core components
	combiner *scoring.Combiner
	harness  *diagnostic.Harness
	deduper  dedupe.Deduper
	jobs     *queue.InMemoryQueue
	pool     *worker.Pool

	// latest maps an event cache key to the dedupe key of its newest accepted
	// submission.
	latestMu sync.Mutex
	latest   map[string]string

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	embedConcurrency int
	weights          scoring.Weights
	emptyTargetsOpen bool
	cacheBackend     string
	catalogBackend   string
	now              func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. It fails when a collaborator is nil or the
// weights are invalid.
func New(cat catalog.Catalog, store cache.Cache, embedder embedding.Embedder, opts ...Option) (*Service, error) {
	if cat == nil || store == nil || embedder == nil {
		return nil, ErrMissingDependency
	}

	s := &Service{
		catalog:          cat,
		cache:            store,
		embedder:         embedder,
		workerCount:      runtime.NumCPU(),
		queueSize:        10_000,
		dedupeSize:       50_000,
		embedConcurrency: 4,
		weights:          scoring.DefaultWeights(),
		emptyTargetsOpen: true,
		cacheBackend:     "memory",
		catalogBackend:   "memory",
		now:              time.Now,
		latest:           make(map[string]string),
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	combiner, err := scoring.NewCombiner(
		scoring.WithWeights(s.weights),
		scoring.WithEmptyTargetsOpen(s.emptyTargetsOpen),
	)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if !s.weights.Dominant() {
		s.logger.Warn(context.Background(), "major weight does not dominate vector weight",
			logger.Float64("w_major", s.weights.Major),
			logger.Float64("w_vector", s.weights.Vector),
			logger.Float64("bonus", s.weights.Bonus))
	}

	s.combiner = combiner
	s.harness = diagnostic.New(cat, store, combiner,
		diagnostic.WithClock(func() time.Time { return s.now() }),
		diagnostic.WithLogger(s.logger.Named("diagnostic")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	return s, nil
}

// Start launches the embedding worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = worker.NewPool(s.workerCount, s.jobs, s.embedder, latestOnlyStore{Cache: s.cache, svc: s},
		worker.WithLogger(s.logger),
		worker.WithCompletionHook(s.jobDone),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "recommendation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("embedConcurrency", s.embedConcurrency),
	)
	return nil
}

// Stop closes the job queue and waits, up to 30 seconds, for the workers to
// embed every job still queued. The service cannot be started again.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping recommendation service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "recommendation service stopped")
}

// Recommend ranks upcoming events for userID and returns at most topN of them
// (all when topN <= 0) with scores rounded to three decimals. An unknown user
// or an empty catalog yields an empty list. Only a configuration error that
// prevents embedding the profile is returned; every other embedding failure
// degrades the affected vector score to zero.
func (s *Service) Recommend(ctx context.Context, userID string, topN int) ([]model.Recommendation, error) {
	start := time.Now()

	profile, err := s.catalog.GetProfile(ctx, userID)
	if errors.Is(err, catalog.ErrNotFound) {
		return []model.Recommendation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recommend: load profile: %w", err)
	}

	profileVec, err := s.profileVector(ctx, profile)
	if err != nil {
		return nil, err
	}

	events, err := s.catalog.GetCandidateEvents(ctx, catalog.Filter{From: s.now()})
	if err != nil {
		return nil, fmt.Errorf("recommend: load candidates: %w", err)
	}
	if len(events) == 0 {
		return []model.Recommendation{}, nil
	}

	eventVecs := s.eventVectors(ctx, events, profileVec != nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recs := make([]model.Recommendation, 0, len(events))
	for _, e := range events {
		res := s.combiner.Score(profile, profileVec, e, eventVecs[e.ID])
		if res.VectorDegraded {
			metrics.RecordDegradedScore(res.DegradedReason)
		}
		recs = append(recs, model.Recommendation{Event: e, Score: res})
	}

	recs = scoring.RankRecommendations(recs, topN)
	for i := range recs {
		recs[i].Score = scoring.RoundResult(recs[i].Score)
	}

	metrics.RecordRecommendation(len(events), float64(time.Since(start).Milliseconds()))
	s.logger.Debug(ctx, "recommendation served",
		logger.String("user_id", userID),
		logger.Int("candidates", len(events)),
		logger.Int("returned", len(recs)),
		logger.Duration("took", time.Since(start)))
	return recs, nil
}

// profileVector resolves the profile embedding: stored or cached when the
// content hash still matches, otherwise computed and cached. A nil vector
// with a nil error means the embedding is unavailable.
func (s *Service) profileVector(ctx context.Context, p model.UserProfile) ([]float32, error) {
	text := p.EmbeddingText()
	hash := model.ContentHash(text)
	if hash == "" {
		return nil, nil
	}

	if vec, src := diagnostic.Lookup(ctx, s.cache, p.CacheKey(), hash, p.Embedding, p.EmbeddingHash); src != diagnostic.SourceMissing {
		return vec, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if embedding.KindOf(err) == embedding.KindConfig {
			return nil, fmt.Errorf("recommend: profile embedding: %w", err)
		}
		s.logger.Warn(ctx, "profile embedding unavailable",
			logger.String("user_id", p.ID),
			logger.Error(err))
		return nil, nil
	}

	if err := s.cache.Put(ctx, p.CacheKey(), hash, vec); err != nil {
		s.logger.Warn(ctx, "caching profile embedding failed",
			logger.String("user_id", p.ID),
			logger.Error(err))
	}
	return vec, nil
}

// eventVectors resolves every candidate's embedding. Missing ones are
// computed in one bounded batch when compute is true; failures leave the
// event without a vector.
func (s *Service) eventVectors(ctx context.Context, events []model.EventRecord, compute bool) map[string][]float32 {
	vecs := make(map[string][]float32, len(events))
	var jobs []queue.Job
	ids := make(map[string]string)

	for _, e := range events {
		text := e.EmbeddingText()
		hash := model.ContentHash(text)
		if vec, src := diagnostic.Lookup(ctx, s.cache, e.CacheKey(), hash, e.Embedding, e.EmbeddingHash); src != diagnostic.SourceMissing {
			vecs[e.ID] = vec
			continue
		}
		if compute && hash != "" {
			jobs = append(jobs, queue.Job{Key: e.CacheKey(), Hash: hash, Text: text})
			ids[e.CacheKey()] = e.ID
		}
	}
	if len(jobs) == 0 {
		return vecs
	}

	results := worker.RunBatch(ctx, s.embedder, jobs, s.embedConcurrency)
	for i, r := range results {
		if r.Err != nil {
			s.logger.Warn(ctx, "event embedding unavailable",
				logger.String("key", r.Key),
				logger.String("kind", embedding.KindOf(r.Err).String()),
				logger.Error(r.Err))
			continue
		}
		vecs[ids[r.Key]] = r.Vec
		if err := s.cache.Put(ctx, r.Key, jobs[i].Hash, r.Vec); err != nil {
			s.logger.Warn(ctx, "caching event embedding failed",
				logger.String("key", r.Key),
				logger.Error(err))
		}
	}
	return vecs
}

// RunDiagnostic scores every upcoming event for userID without computing or
// storing any embedding.
func (s *Service) RunDiagnostic(ctx context.Context, userID string) (diagnostic.Report, error) {
	return s.harness.Run(ctx, userID)
}

// SubmitEventEmbedding queues an asynchronous embedding refresh for e. It
// reports duplicate when the event's newest content is submitted again while
// queued or done, and neither flag when the text is empty or the queue is
// full. Accepting new content releases the previous content's key, so
// reverting a description embeds it again.
func (s *Service) SubmitEventEmbedding(ctx context.Context, e model.EventRecord) (accepted, duplicate bool) {
	text := e.EmbeddingText()
	hash := model.ContentHash(text)
	if hash == "" {
		return false, false
	}

	key := dedupe.Key(e.CacheKey(), hash)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordEmbeddingJobDuplicate()
		s.logger.Debug(ctx, "duplicate embedding job skipped", logger.String("dedupe_key", key))
		return false, true
	}

	// Marked newest before enqueueing so a fast worker's write is kept.
	job := queue.Job{Key: e.CacheKey(), Hash: hash, Text: text, DedupeKey: key}
	prev := s.swapLatest(job.Key, key)
	if !s.jobs.Enqueue(ctx, job) {
		s.restoreLatest(job.Key, key, prev)
		s.deduper.Unrecord(ctx, key)
		s.logger.Warn(ctx, "embedding queue rejected job", logger.String("key", job.Key))
		return false, false
	}

	if prev != "" && prev != key {
		s.deduper.Unrecord(ctx, prev)
	}
	return true, false
}

// swapLatest records dedupeKey as the newest submission for entityKey and
// returns the one it replaces.
func (s *Service) swapLatest(entityKey, dedupeKey string) string {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	prev := s.latest[entityKey]
	s.latest[entityKey] = dedupeKey
	return prev
}

// restoreLatest undoes swapLatest unless another submission replaced it since.
func (s *Service) restoreLatest(entityKey, dedupeKey, prev string) {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	if s.latest[entityKey] != dedupeKey {
		return
	}
	if prev == "" {
		delete(s.latest, entityKey)
		return
	}
	s.latest[entityKey] = prev
}

// putIfLatest writes vec only while hash is the newest submitted content for
// key. Keys never submitted through the queue are always current. The lock is
// held across the write so a newer submission cannot slip in between.
func (s *Service) putIfLatest(ctx context.Context, key, hash string, vec []float32) error {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	if cur, ok := s.latest[key]; ok && cur != dedupe.Key(key, hash) {
		s.logger.Debug(ctx, "superseded embedding discarded", logger.String("key", key))
		return nil
	}
	return s.cache.Put(ctx, key, hash, vec)
}

// latestOnlyStore drops worker writes for content that a newer submission has
// replaced, so an older job finishing late cannot overwrite a newer vector.
type latestOnlyStore struct {
	cache.Cache
	svc *Service
}

func (l latestOnlyStore) Put(ctx context.Context, key, hash string, vec []float32) error {
	return l.svc.putIfLatest(ctx, key, hash, vec)
}

// jobDone releases the dedupe key of a failed job so it can be resubmitted.
func (s *Service) jobDone(ctx context.Context, job queue.Job, err error) {
	if err != nil && job.DedupeKey != "" {
		s.deduper.Unrecord(ctx, job.DedupeKey)
	}
}

// Weights returns the active scoring weights.
func (s *Service) Weights() scoring.Weights {
	return s.combiner.Weights()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	w := s.combiner.Weights()
	stats := types.Stats{
		QueueLength:    s.jobs.Len(ctx),
		QueueCapacity:  s.queueSize,
		Workers:        s.workerCount,
		DedupeSize:     s.deduper.Size(),
		CacheBackend:   s.cacheBackend,
		CatalogBackend: s.catalogBackend,
		WeightMajor:    w.Major,
		WeightVector:   w.Vector,
		Bonus:          w.Bonus,
		Started:        s.started,
	}
	metrics.UpdateQueueSize(stats.QueueLength)
	return stats
}
