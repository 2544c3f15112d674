package similarity

import "errors"

// Sentinel kinds for comparison failures. All of them mean "no match" to
// IsMatch; callers scanning a gallery use them to tell corrupt records apart.
var (
	ErrMissingDescriptor = errors.New("descriptor missing")
	ErrLengthMismatch    = errors.New("descriptor length mismatch")
	ErrDegenerate        = errors.New("correlation undefined for zero-variance descriptor")
)
