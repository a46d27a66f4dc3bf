// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/spendseg/internal/adapters/mq/notify"
	jobqueue "github.com/okian/spendseg/internal/adapters/mq/queue"
	workerpool "github.com/okian/spendseg/internal/adapters/mq/worker"
	"github.com/okian/spendseg/internal/adapters/repository"
	"github.com/okian/spendseg/internal/config"
	"github.com/okian/spendseg/internal/domain/dedupe"
	"github.com/okian/spendseg/internal/domain/segmentation"
	"github.com/okian/spendseg/pkg/logger"
	"github.com/okian/spendseg/pkg/metrics"
)

// ErrNotStarted is returned by operations that need the running components.
var ErrNotStarted = errors.New("service not started")

// persistTimeout bounds store writes made after the caller may have gone.
const persistTimeout = 5 * time.Second

// Service implements the API dependencies for the segmentation system.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store      repository.Store
	registry   dedupe.Registry
	jobs       *jobqueue.InMemoryQueue
	analyzer   *segmentation.Analyzer
	publisher  notify.Publisher
	workerPool *workerpool.Pool

	// Injected replacements, used instead of building from config.
	storeOverride     repository.Store
	publisherOverride notify.Publisher

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration the components are built from.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
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

// WithStore uses store instead of the one selected by configuration. The
// service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.storeOverride = store
	}
}

// WithPublisher uses p for completion events instead of the one selected by
// configuration.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		s.publisherOverride = p
	}
}

// New constructs a new Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("service")
	}

	s.logger.Info(ctx, "starting segmentation service...")

	store, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	publisher, err := s.openPublisher()
	if err != nil {
		_ = store.Close()
		return err
	}

	s.store = store
	s.publisher = publisher
	s.registry = dedupe.NewInMemoryRegistry(
		dedupe.WithMaxSize(s.cfg.DedupeSize),
		dedupe.WithTTL(s.cfg.DedupeTTL),
	)
	s.jobs = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.cfg.QueueSize))
	s.analyzer = NewAnalyzer(s.cfg)

	s.workerPool = workerpool.NewPool(
		s.cfg.WorkerCount,
		s.jobs,
		&instrumentedAnalyzer{analyzer: s.analyzer, mode: metrics.ModeAsync},
		s.store,
		s.publisher,
	)
	// Workers outlive the start context; Stop drains them.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "segmentation service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queue_size", s.cfg.QueueSize),
		logger.Int("dedupe_size", s.cfg.DedupeSize),
		logger.String("store", s.cfg.Store),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	if s.storeOverride != nil {
		return s.storeOverride, nil
	}
	switch s.cfg.Store {
	case config.StoreSQLite:
		store, err := repository.NewSQLiteStore(ctx, s.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.cfg.SQLitePath))
		return store, nil
	default:
		s.logger.Info(ctx, "using memory store")
		return repository.NewMemoryStore(ctx), nil
	}
}

func (s *Service) openPublisher() (notify.Publisher, error) {
	if s.publisherOverride != nil {
		return s.publisherOverride, nil
	}
	if s.cfg.AMQPURL == "" {
		return notify.Noop{}, nil
	}
	p, err := notify.NewAMQPPublisher(s.cfg.AMQPURL, s.cfg.AMQPExchange, s.cfg.AMQPRoutingKey,
		notify.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("open amqp publisher: %w", err)
	}
	return p, nil
}

// Stop drains queued jobs and releases the components.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping segmentation service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn(ctx, "closing publisher", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "segmentation service stopped")
}

// Claim binds a client request ID to an analysis ID.
func (s *Service) Claim(ctx context.Context, requestID, analysisID string) (string, bool) {
	return s.registry.Claim(ctx, requestID, analysisID)
}

// Release forgets a client request ID so it can be retried.
func (s *Service) Release(ctx context.Context, requestID string) {
	s.registry.Release(ctx, requestID)
}

// Size returns the number of remembered request IDs.
func (s *Service) Size() int64 {
	if s.registry == nil {
		return 0
	}
	return s.registry.Size()
}

// Analyze runs req synchronously and stores the result.
func (s *Service) Analyze(ctx context.Context, req segmentation.Request) (*segmentation.Result, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}

	a := &instrumentedAnalyzer{analyzer: s.analyzer, mode: metrics.ModeSync}
	res, err := a.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	id := res.ID.String()
	// A stored copy is a convenience; the caller already has the result.
	if err := s.store.Create(ctx, repository.Entry{ID: id, Status: repository.StatusRunning, Records: res.Records}); err != nil {
		s.logger.Warn(ctx, "storing analysis", logger.String("id", id), logger.Error(err))
		return res, nil
	}
	if err := s.store.Complete(ctx, id, res); err != nil {
		s.logger.Warn(ctx, "storing analysis result", logger.String("id", id), logger.Error(err))
	}
	return res, nil
}

// Enqueue records job as pending and queues it. It returns false when the
// job could not be queued.
func (s *Service) Enqueue(ctx context.Context, job jobqueue.Job) bool { //nolint:gocritic // hugeParam: Job is queued by value
	if !s.isStarted() {
		return false
	}

	entry := repository.Entry{
		ID:        job.AnalysisID,
		RequestID: job.RequestID,
		Status:    repository.StatusPending,
		Records:   len(job.Request.Records),
		K:         job.Request.K,
	}
	if err := s.store.Create(ctx, entry); err != nil {
		s.logger.Error(ctx, "recording pending analysis", logger.String("id", job.AnalysisID), logger.Error(err))
		return false
	}

	if !s.jobs.Enqueue(ctx, job) {
		s.logger.Warn(ctx, "analysis queue rejected job", logger.String("id", job.AnalysisID))
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := s.store.Fail(failCtx, job.AnalysisID, "queue full"); err != nil {
			s.logger.Error(ctx, "marking rejected analysis", logger.Error(err))
		}
		return false
	}
	return true
}

// Get returns one stored analysis.
func (s *Service) Get(ctx context.Context, id string) (repository.Entry, error) {
	if !s.isStarted() {
		return repository.Entry{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// List returns up to limit stored analyses, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]repository.Entry, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.store.List(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"queue_size":  s.cfg.QueueSize,
		"dedupe_size": s.cfg.DedupeSize,
		"store":       s.cfg.Store,
	}

	if s.started {
		queueLen := s.jobs.Len(ctx)
		stored := s.store.Count(ctx)

		stats["worker_count"] = s.workerPool.Size()
		stats["queue_length"] = queueLen
		stats["stored_analyses"] = stored
		stats["claimed_request_ids"] = s.registry.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateStoreResults(stored)
	}
	return stats
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
