package service

import "errors"

// Sentinel errors returned by the Service.
var (
	ErrNoCandidates = errors.New("no valid grouping could be produced")
	ErrNotStarted   = errors.New("service not started")
)
