package dedupe

import "time"

// Option applies a configuration option to the in-memory registry.
type Option func(*inMemoryRegistry)

// WithMaxSize bounds the number of remembered request IDs. The oldest claim
// is evicted first. Zero or negative disables the bound.
func WithMaxSize(maxSize int) Option {
	return func(r *inMemoryRegistry) {
		r.maxSize = maxSize
	}
}

// WithTTL forgets claims older than ttl. Zero keeps claims until evicted.
func WithTTL(ttl time.Duration) Option {
	return func(r *inMemoryRegistry) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *inMemoryRegistry) {
		if now != nil {
			r.now = now
		}
	}
}
