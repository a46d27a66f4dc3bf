package worker

import (
	"sync/atomic"

	"github.com/okian/spendseg/internal/adapters/mq/notify"
	"github.com/okian/spendseg/pkg/logger"
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

// WithPublisher sets where completion events go.
func WithPublisher(p notify.Publisher) Option {
	return func(w *InMemoryWorker) {
		if p != nil {
			w.publisher = p
		}
	}
}

// withActiveCounter shares the busy-worker gauge across a pool.
func withActiveCounter(c *atomic.Int64) Option {
	return func(w *InMemoryWorker) {
		w.active = c
	}
}
