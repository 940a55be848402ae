package worker

import (
	"github.com/okian/eventrank/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithCompletionHook registers fn to run after every job, successful or not.
func WithCompletionHook(fn CompletionFunc) Option {
	return func(w *InMemoryWorker) {
		w.onDone = fn
	}
}
