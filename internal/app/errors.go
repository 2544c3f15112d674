package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrPersistence    = errors.New("persistence failure")
	ErrNotStarted     = errors.New("service not started")
)
