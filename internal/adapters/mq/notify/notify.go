// Package notify announces finished analyses to other systems.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Event types.
const (
	EventCompleted = "analysis.completed"
	EventFailed    = "analysis.failed"
)

// Event is the message published when an analysis finishes.
type Event struct {
	Type       string    `json:"type"`
	AnalysisID string    `json:"analysis_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Records    int       `json:"records"`
	K          int       `json:"k,omitempty"`
	Insights   int       `json:"insights,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToJSON encodes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards events. It is used when no broker is configured.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }
