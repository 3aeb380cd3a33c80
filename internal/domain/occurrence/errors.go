package occurrence

import "errors"

// Sentinel kinds for occurrence errors.
var (
	ErrInvalidPartition = errors.New("invalid partition")
)
