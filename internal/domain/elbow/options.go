package elbow

import (
	"context"

	"github.com/okian/spendseg/internal/domain/kmeans"
	"github.com/okian/spendseg/pkg/logger"
)

// Runner clusters points into k groups using the given seed. The default
// runner builds a fresh kmeans.Engine per call.
type Runner func(ctx context.Context, points []kmeans.Point, k int, seed int64) (*kmeans.Result, error)

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithMaxK caps the largest candidate. Values below 2 are ignored.
func WithMaxK(k int) Option {
	return func(s *Selector) {
		if k >= MinK {
			s.maxK = k
		}
	}
}

// WithThreshold sets the minimum rate drop that counts as an elbow.
func WithThreshold(t float64) Option {
	return func(s *Selector) {
		if t >= 0 {
			s.threshold = t
		}
	}
}

// WithDefaultK sets the fallback used when no elbow clears the threshold.
func WithDefaultK(k int) Option {
	return func(s *Selector) {
		if k >= MinK {
			s.defaultK = k
		}
	}
}

// WithIterations sets the per-candidate iteration budget.
func WithIterations(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.iterations = n
		}
	}
}

// WithTolerance sets the convergence tolerance for candidate runs.
func WithTolerance(tol float64) Option {
	return func(s *Selector) {
		if tol >= 0 {
			s.tolerance = tol
		}
	}
}

// WithSeed sets the base seed. Candidate k uses seed+k.
func WithSeed(seed int64) Option {
	return func(s *Selector) {
		s.seed = seed
		s.seeded = true
	}
}

// WithParallel evaluates candidates concurrently.
func WithParallel(enabled bool) Option {
	return func(s *Selector) {
		s.parallel = enabled
	}
}

// WithRunner replaces the clustering run used for each candidate.
func WithRunner(r Runner) Option {
	return func(s *Selector) {
		if r != nil {
			s.run = r
		}
	}
}

// WithLogger sets a custom logger for the selector.
func WithLogger(l logger.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}
