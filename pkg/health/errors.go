package health

import "errors"

var errUnknownFailure = errors.New("unknown failure")
