package config

import "errors"

// Sentinel kinds returned by Load and Validate.
var (
	// ErrInvalidConfig reports a value that is out of range or unknown.
	ErrInvalidConfig = errors.New("invalid groupsplit configuration")
	// ErrLoadConfig reports a file or environment layer that could not be read.
	ErrLoadConfig = errors.New("reading groupsplit configuration")
)
