package features

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnknownCategoryTable = errors.New("unknown category table")
	ErrNoFeatures           = errors.New("no features requested")
)
