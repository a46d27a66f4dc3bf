// Package repository stores analysis runs and their results.
package repository

import (
	"context"
	"time"

	"github.com/okian/spendseg/internal/domain/segmentation"
)

// Status is the lifecycle state of an analysis.
type Status string

// Analysis lifecycle states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Entry is one stored analysis. Result is set only when Status is completed.
type Entry struct {
	ID        string               `json:"id"`
	RequestID string               `json:"request_id,omitempty"`
	Status    Status               `json:"status"`
	Error     string               `json:"error,omitempty"`
	Records   int                  `json:"records"`
	K         int                  `json:"k,omitempty"`
	Result    *segmentation.Result `json:"result,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Store provides read/write access to analyses.
type Store interface {
	// Create records a new analysis. Returns ErrDuplicate if the ID exists.
	Create(ctx context.Context, e Entry) error

	// Start marks an analysis as running.
	Start(ctx context.Context, id string) error

	// Complete attaches the result and marks the analysis completed.
	Complete(ctx context.Context, id string, res *segmentation.Result) error

	// Fail marks the analysis failed with the given cause.
	Fail(ctx context.Context, id string, cause string) error

	// Get returns the analysis. Returns ErrNotFound if the ID is unknown.
	Get(ctx context.Context, id string) (Entry, error)

	// List returns up to limit analyses, newest first, without results.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Count returns the number of stored analyses.
	Count(ctx context.Context) int

	Close() error
}
