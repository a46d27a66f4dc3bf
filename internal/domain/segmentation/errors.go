package segmentation

import (
	"errors"

	"github.com/okian/spendseg/internal/domain/features"
)

// Analysis errors. Statistically degenerate input is never an error; these
// cover requests the pipeline cannot run at all.
var (
	ErrInsufficientData = errors.New("segmentation: no records to cluster")
	ErrInvalidK         = errors.New("segmentation: k out of range")
	ErrNoFeatures       = features.ErrNoFeatures
	ErrInvalidRequest   = errors.New("segmentation: invalid request")
)
