package services

import "errors"

// ErrStoreUnavailable is reported by readiness checks when the object store
// cannot be reached.
var ErrStoreUnavailable = errors.New("object store unavailable")
