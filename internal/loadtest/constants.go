package loadtest

import "time"

// Analysis status values reported by the service.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultCompleteTimeout = 2 * time.Minute
	PercentageMultiplier   = 100
)
