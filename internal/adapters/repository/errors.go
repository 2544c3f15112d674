package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("identity not found")
	ErrDuplicateRoll  = errors.New("roll already registered")
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrUnavailable    = errors.New("store unavailable")
)
