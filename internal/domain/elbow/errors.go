package elbow

import "errors"

// ErrCandidatePanic marks a candidate run that panicked. It is recorded on the
// candidate and never returned from Select.
var ErrCandidatePanic = errors.New("elbow: candidate run panicked")
