package detector

import "errors"

// Sentinel kinds for detector errors.
var (
	ErrCascadeUnavailable = errors.New("face cascade unavailable")
)
