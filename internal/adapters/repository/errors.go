package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("analysis not found")
	ErrDuplicate    = errors.New("analysis already exists")
	ErrInvalidLimit = errors.New("invalid list limit")
	ErrNoResult     = errors.New("result is nil")
)
