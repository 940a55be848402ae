package service

import (
	"time"

	"github.com/okian/eventrank/internal/config"
	"github.com/okian/eventrank/internal/domain/scoring"
	"github.com/okian/eventrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of asynchronous embedding workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the embedding job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the job deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithEmbedConcurrency bounds in-flight embedding calls per recommendation.
func WithEmbedConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.embedConcurrency = n
		}
	}
}

// WithWeights sets the scoring weights.
func WithWeights(w scoring.Weights) Option {
	return func(s *Service) {
		s.weights = w
	}
}

// WithEmptyTargetsOpen controls whether events without target majors match every profile.
func WithEmptyTargetsOpen(open bool) Option {
	return func(s *Service) {
		s.emptyTargetsOpen = open
	}
}

// WithBackendNames records which cache and catalog backends are in use, for stats.
func WithBackendNames(cacheBackend, catalogBackend string) Option {
	return func(s *Service) {
		s.cacheBackend = cacheBackend
		s.catalogBackend = catalogBackend
	}
}

// WithClock sets the clock used to select upcoming events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// OptionsFromConfig maps the process configuration onto service options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithEmbedConcurrency(cfg.EmbedConcurrency),
		WithWeights(scoring.Weights{
			Major:  cfg.WeightMajor,
			Vector: cfg.WeightVector,
			Bonus:  cfg.MajorBonus,
		}),
		WithEmptyTargetsOpen(cfg.EmptyTargetsOpen),
		WithBackendNames(cfg.CacheBackend, cfg.CatalogBackend),
	}
}
