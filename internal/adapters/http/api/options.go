package api

import "github.com/okian/spendseg/pkg/logger"

// Default handler limits.
const (
	DefaultMinRecords   = 5
	DefaultMaxRecords   = 100_000
	DefaultListLimit    = 20
	DefaultMaxListLimit = 100
	maxBodyBytes        = 32 << 20
)

// Option applies a configuration option to the AnalysesHandler.
type Option func(*AnalysesHandler)

// WithRecordLimits sets the accepted transaction count range. A zero max
// removes the upper bound.
func WithRecordLimits(minRecords, maxRecords int) Option {
	return func(h *AnalysesHandler) {
		if minRecords > 0 {
			h.limits.minRecords = minRecords
		}
		if maxRecords >= 0 {
			h.limits.maxRecords = maxRecords
		}
	}
}

// WithMaxListLimit caps the limit query parameter of GET /analyses.
func WithMaxListLimit(n int) Option {
	return func(h *AnalysesHandler) {
		if n > 0 {
			h.maxListLimit = n
		}
	}
}

// WithLogger sets a custom logger for the handler.
func WithLogger(l logger.Logger) Option {
	return func(h *AnalysesHandler) {
		if l != nil {
			h.logger = l
		}
	}
}
