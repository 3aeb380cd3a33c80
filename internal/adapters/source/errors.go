package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidRoster     = errors.New("invalid roster")
	ErrInvalidExemptions = errors.New("invalid exempt meetings")
)
