package labeling

import "errors"

// ErrUnknownStrategy is returned for a labeling strategy name that is not recognized.
var ErrUnknownStrategy = errors.New("labeling: unknown strategy")
