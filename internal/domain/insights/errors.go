package insights

import "errors"

// ErrUnknownPolicy is returned for an insight policy name that is not recognized.
var ErrUnknownPolicy = errors.New("insights: unknown policy")
