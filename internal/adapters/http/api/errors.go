package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrLimitExceeded    = errors.New("limit exceeded")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// wrapKind tags err with the operation and a sentinel kind. err may be nil.
func wrapKind(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
