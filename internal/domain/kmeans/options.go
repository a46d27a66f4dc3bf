package kmeans

import (
	"math"
	"math/rand"

	"github.com/okian/spendseg/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSeed makes centroid initialization deterministic.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible clustering, not crypto
	}
}

// WithRand sets the random source used for initialization. The engine takes
// ownership; *rand.Rand must not be shared with concurrent runs.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithTolerance sets the centroid shift below which a run is converged.
// Zero is allowed and means centroids must stop moving entirely.
func WithTolerance(tol float64) Option {
	return func(e *Engine) {
		if tol >= 0 && !math.IsNaN(tol) {
			e.tolerance = tol
		}
	}
}

// WithMaxIterations bounds the refinement loop.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
