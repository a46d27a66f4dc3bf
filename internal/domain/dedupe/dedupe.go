// Package dedupe makes asynchronous analysis submissions idempotent by
// remembering which analysis a client request ID was bound to.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxSize is the number of request IDs remembered by default.
const DefaultMaxSize = 50000

// Registry binds client request IDs to analysis IDs.
type Registry interface {
	// Claim binds requestID to analysisID unless it is already bound. When it
	// is, the existing analysis ID is returned with seen set to true.
	Claim(ctx context.Context, requestID, analysisID string) (existing string, seen bool)

	// Release forgets requestID so the request can be retried. Used when a
	// claimed submission could not be enqueued.
	Release(ctx context.Context, requestID string)

	// Size returns the number of remembered request IDs.
	Size() int64
}

type claim struct {
	requestID  string
	analysisID string
	at         time.Time
}

// inMemoryRegistry keeps claims in insertion order so the oldest can be
// evicted in constant time.
type inMemoryRegistry struct {
	mu      sync.Mutex
	claims  map[string]*list.Element
	order   *list.List // front is newest
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryRegistry creates a Registry held in process memory.
func NewInMemoryRegistry(opts ...Option) Registry {
	r := &inMemoryRegistry{
		claims:  make(map[string]*list.Element),
		order:   list.New(),
		maxSize: DefaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *inMemoryRegistry) Claim(_ context.Context, requestID, analysisID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if el, ok := r.claims[requestID]; ok {
		c := el.Value.(*claim)
		if !r.expired(c, now) {
			return c.analysisID, true
		}
		r.remove(el)
	}

	if r.maxSize > 0 {
		for len(r.claims) >= r.maxSize {
			r.remove(r.order.Back())
		}
	}
	r.claims[requestID] = r.order.PushFront(&claim{requestID: requestID, analysisID: analysisID, at: now})
	return analysisID, false
}

func (r *inMemoryRegistry) Release(_ context.Context, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.claims[requestID]; ok {
		r.remove(el)
	}
}

func (r *inMemoryRegistry) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.claims))
}

func (r *inMemoryRegistry) expired(c *claim, now time.Time) bool {
	return r.ttl > 0 && now.Sub(c.at) >= r.ttl
}

// remove must be called with r.mu held.
func (r *inMemoryRegistry) remove(el *list.Element) {
	c := el.Value.(*claim)
	delete(r.claims, c.requestID)
	r.order.Remove(el)
}
