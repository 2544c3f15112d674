package extract

import (
	"errors"
	"fmt"
)

// ErrNoFace is the NotFound result of extraction. The more specific causes
// below wrap it, so errors.Is(err, ErrNoFace) holds for all of them.
var (
	ErrNoFace              = errors.New("no face detected")
	ErrUndecodable         = fmt.Errorf("%w: image could not be decoded", ErrNoFace)
	ErrDetectorUnavailable = fmt.Errorf("%w: face detector unavailable", ErrNoFace)
)
