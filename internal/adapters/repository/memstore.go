package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/spendseg/internal/domain/segmentation"
	"github.com/okian/spendseg/pkg/metrics"
)

const defaultMaxEntries = 10_000

// MemoryStore keeps analyses in process memory. Insertion order doubles as
// creation order, so listing needs no sort.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Entry
	order []string // oldest first

	maxEntries            int
	metricsUpdateInterval time.Duration
	now                   func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs a memory store with configuration options.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:                  make(map[string]*Entry),
		maxEntries:            defaultMaxEntries,
		metricsUpdateInterval: 5 * time.Second,
		now:                   time.Now,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics.UpdateStoreResults(0)
	s.startMetricsUpdater(ctx)
	return s
}

// Create implements Store.Create.
func (s *MemoryStore) Create(ctx context.Context, e Entry) error {
	defer observe("create", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[e.ID]; ok {
		metrics.RecordStoreError("create")
		return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
	}
	now := s.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = StatusPending
	}
	s.byID[e.ID] = &e
	s.order = append(s.order, e.ID)
	s.evictLocked()
	return nil
}

// Start implements Store.Start.
func (s *MemoryStore) Start(ctx context.Context, id string) error {
	return s.update("start", id, func(e *Entry) {
		e.Status = StatusRunning
	})
}

// Complete implements Store.Complete.
func (s *MemoryStore) Complete(ctx context.Context, id string, res *segmentation.Result) error {
	if res == nil {
		return ErrNoResult
	}
	return s.update("complete", id, func(e *Entry) {
		e.Status = StatusCompleted
		e.Error = ""
		e.Records = res.Records
		e.K = res.Metadata.K
		e.Result = res
	})
}

// Fail implements Store.Fail.
func (s *MemoryStore) Fail(ctx context.Context, id string, cause string) error {
	return s.update("fail", id, func(e *Entry) {
		e.Status = StatusFailed
		e.Error = cause
	})
}

func (s *MemoryStore) update(op, id string, apply func(*Entry)) error {
	defer observe(op, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		metrics.RecordStoreError(op)
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	apply(e)
	e.UpdatedAt = s.now().UTC()
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, id string) (Entry, error) {
	defer observe("get", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *e, nil
}

// List implements Store.List.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Entry, error) {
	defer observe("list", time.Now())

	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		e := *s.byID[s.order[i]]
		e.Result = nil
		out = append(out, e)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// evictLocked drops the oldest entries beyond maxEntries. Analyses that are
// still pending or running are kept so their workers can finish.
func (s *MemoryStore) evictLocked() {
	if s.maxEntries == 0 || len(s.order) <= s.maxEntries {
		return
	}
	excess := len(s.order) - s.maxEntries
	kept := s.order[:0]
	for _, id := range s.order {
		if excess > 0 && s.byID[id].Status.Terminal() {
			delete(s.byID, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// startMetricsUpdater starts a background goroutine that publishes the store size.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateStoreResults(s.Count(ctx))
			}
		}
	}()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
