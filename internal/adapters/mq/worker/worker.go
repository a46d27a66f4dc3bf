// Package worker runs queued analyses and records their outcome.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/spendseg/internal/adapters/mq/notify"
	"github.com/okian/spendseg/internal/adapters/mq/queue"
	"github.com/okian/spendseg/internal/domain/segmentation"
	"github.com/okian/spendseg/pkg/logger"
	"github.com/okian/spendseg/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
	// persistTimeout bounds store writes that must happen even after the
	// job context is cancelled.
	persistTimeout = 5 * time.Second
)

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req segmentation.Request) (*segmentation.Result, error)
}

// Store records analysis progress.
type Store interface {
	Start(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, res *segmentation.Result) error
	Fail(ctx context.Context, id string, cause string) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	analyzer  Analyzer
	store     Store
	publisher notify.Publisher
	name      string
	active    *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, analyzer Analyzer, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		analyzer:  analyzer,
		store:     store,
		publisher: notify.Noop{},
		name:      "worker",
		active:    &atomic.Int64{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Default().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
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
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "analysis failed",
					logger.String("analysis_id", job.AnalysisID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs a single job. The returned error is the analysis failure; it
// has already been recorded in the store.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error { //nolint:gocritic // hugeParam: Job arrives by value from the channel
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.store.Start(ctx, job.AnalysisID); err != nil {
		metrics.RecordWorkerError()
		w.logger.Warn(ctx, "could not mark analysis running",
			logger.String("analysis_id", job.AnalysisID),
			logger.Error(err),
		)
	}

	res, err := w.analyzer.Analyze(ctx, job.Request)
	if err != nil {
		metrics.RecordWorkerError()
		w.finish(ctx, job, nil, err)
		return err
	}

	// The result carries the ID the caller was given at submission.
	if id, perr := uuid.Parse(job.AnalysisID); perr == nil {
		res.ID = id
	}
	w.finish(ctx, job, res, nil)
	return nil
}

// finish persists and announces the outcome. It uses a fresh context so a
// cancelled job still leaves a terminal state behind.
func (w *InMemoryWorker) finish(ctx context.Context, job queue.Job, res *segmentation.Result, cause error) { //nolint:gocritic // hugeParam: Job arrives by value from the channel
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	ev := notify.Event{
		AnalysisID: job.AnalysisID,
		RequestID:  job.RequestID,
		Records:    len(job.Request.Records),
		Timestamp:  time.Now().UTC(),
	}

	if cause != nil {
		ev.Type = notify.EventFailed
		ev.Error = cause.Error()
		if err := w.store.Fail(pctx, job.AnalysisID, cause.Error()); err != nil {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "could not record failed analysis", logger.String("analysis_id", job.AnalysisID), logger.Error(err))
		}
	} else {
		ev.Type = notify.EventCompleted
		ev.K = res.Metadata.K
		ev.Insights = len(res.Insights)
		if err := w.store.Complete(pctx, job.AnalysisID, res); err != nil {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "could not store result", logger.String("analysis_id", job.AnalysisID), logger.Error(err))
		}
	}

	if err := w.publisher.Publish(pctx, ev); err != nil {
		w.logger.Warn(ctx, "notification not delivered",
			logger.String("analysis_id", job.AnalysisID),
			logger.String("type", ev.Type),
			logger.Error(err),
		)
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers sharing the queue, analyzer,
// store and publisher. A count below one uses one worker per CPU.
func NewPool(workerCount int, q Queue, analyzer Analyzer, store Store, publisher notify.Publisher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	if publisher == nil {
		publisher = notify.Noop{}
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Default().Named("worker-pool"),
	}

	active := &atomic.Int64{}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, analyzer, store,
			WithName("worker-"+strconv.Itoa(i)),
			WithPublisher(publisher),
			withActiveCounter(active),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue so no new jobs arrive, then waits for the
// workers to drain it. Jobs still queued once the workers are gone are
// recorded as failed with ErrShutdown.
func (p *Pool) Shutdown(ctx context.Context) error {
	closer, closable := p.queue.(interface{ Close() error })
	if closable {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	if closable {
		if n := p.failQueued(ctx); n > 0 {
			p.logger.Warn(ctx, "queued analyses abandoned at shutdown", logger.Int("count", n))
		}
	}

	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}

// failQueued takes whatever is left in the closed queue and marks it failed,
// so no analysis stays pending after the pool is gone.
func (p *Pool) failQueued(ctx context.Context) int {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	reaper := p.workers[0]
	jobs := p.queue.Dequeue(dctx)
	n := 0
	for {
		select {
		case <-dctx.Done():
			return n
		case job, ok := <-jobs:
			if !ok {
				return n
			}
			reaper.finish(dctx, job, nil, ErrShutdown)
			n++
		}
	}
}
