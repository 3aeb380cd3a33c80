package generator

import "errors"

// Sentinel kinds for generator errors.
var (
	ErrInvalidConfiguration = errors.New("invalid generator configuration")
)
