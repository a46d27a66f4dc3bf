package worker

import "errors"

// ErrShutdown is recorded for queued jobs the pool stopped before running.
var ErrShutdown = errors.New("shutdown")
