package kmeans

import "errors"

// Precondition violations. Statistically degenerate input (empty clusters,
// identical points) is never reported as an error.
var (
	ErrEmptyInput        = errors.New("kmeans: no points")
	ErrInvalidK          = errors.New("kmeans: k must be positive")
	ErrTooFewPoints      = errors.New("kmeans: k exceeds number of points")
	ErrDimensionMismatch = errors.New("kmeans: points have different dimensions")
)
