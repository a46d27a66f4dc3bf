package segmentation

import (
	"github.com/okian/spendseg/pkg/logger"
)

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithMaxIterations sets the iteration cap of the final run.
func WithMaxIterations(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithExploratoryIterations sets the iteration cap of each elbow candidate run.
func WithExploratoryIterations(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.exploratoryIterations = n
		}
	}
}

// WithTolerance sets the convergence tolerance for every run.
func WithTolerance(tol float64) Option {
	return func(a *Analyzer) {
		if tol >= 0 {
			a.tolerance = tol
		}
	}
}

// WithSelection configures automatic k selection.
func WithSelection(maxK, defaultK int, threshold float64) Option {
	return func(a *Analyzer) {
		if maxK >= 2 {
			a.maxK = maxK
		}
		if defaultK >= 2 {
			a.defaultK = defaultK
		}
		if threshold >= 0 {
			a.threshold = threshold
		}
	}
}

// WithParallelSelection evaluates elbow candidates concurrently.
func WithParallelSelection(enabled bool) Option {
	return func(a *Analyzer) {
		a.parallelSelection = enabled
	}
}

// WithSeed sets the seed used when a request carries none.
func WithSeed(seed int64) Option {
	return func(a *Analyzer) {
		a.seed = &seed
	}
}

// WithDefaultFeatures sets the feature list used when a request carries none.
func WithDefaultFeatures(names []string) Option {
	return func(a *Analyzer) {
		if len(names) > 0 {
			a.features = append([]string(nil), names...)
		}
	}
}

// WithDefaultPolicy sets the insight policy name used when a request carries none.
func WithDefaultPolicy(name string) Option {
	return func(a *Analyzer) {
		if name != "" {
			a.policy = name
		}
	}
}

// WithDefaultLabeling sets the labeling strategy used when a request carries none.
func WithDefaultLabeling(name string) Option {
	return func(a *Analyzer) {
		if name != "" {
			a.labeling = name
		}
	}
}

// WithDefaultCategoryTable sets the category table used when a request carries none.
func WithDefaultCategoryTable(name string) Option {
	return func(a *Analyzer) {
		if name != "" {
			a.categoryTable = name
		}
	}
}

// WithNormalizedLogAmount rescales the log_amount feature to [0,1].
func WithNormalizedLogAmount(enabled bool) Option {
	return func(a *Analyzer) {
		a.normalizeLog = enabled
	}
}

// WithLogger sets a custom logger for the analyzer and the components it builds.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}
