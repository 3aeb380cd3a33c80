package repository

import "errors"

// Sentinel kinds for history store errors.
var (
	ErrCorruptHistory = errors.New("corrupt history")
	ErrUnknownBackend = errors.New("unknown history backend")
)
