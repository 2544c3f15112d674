// Package similarity scores pairs of face descriptors and turns the score
// into a match decision.
package similarity

import (
	"fmt"
	"math"

	"github.com/okian/rollcall/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// Default thresholds. Enrollment is stricter than recognition so that near
// duplicates are rejected at registration while live captures still match.
const (
	DefaultThreshold   = 0.7
	EnrollThreshold    = 0.8
	RecognizeThreshold = 0.7
)

// Comparator scores two descriptors. Higher means more similar.
type Comparator interface {
	Score(a, b model.Descriptor) (float64, error)
}

// Pearson scores descriptors by their Pearson correlation coefficient.
type Pearson struct{}

// NewPearson returns the correlation comparator.
func NewPearson() Pearson { return Pearson{} }

// Score implements Comparator.
func (Pearson) Score(a, b model.Descriptor) (float64, error) {
	return Correlation(a, b)
}

// Correlation returns the Pearson correlation of a and b treated as paired
// samples. It never panics: absent, unequal-length and zero-variance inputs
// are reported as errors.
func Correlation(a, b model.Descriptor) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrMissingDescriptor
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, ErrDegenerate
	}
	return r, nil
}

// IsMatch reports whether a and b correlate strictly above threshold.
// Any comparison failure is a non-match.
func IsMatch(a, b model.Descriptor, threshold float64) bool {
	return Matches(Pearson{}, a, b, threshold)
}

// Matches is IsMatch for an arbitrary comparator.
func Matches(c Comparator, a, b model.Descriptor, threshold float64) bool {
	score, err := c.Score(a, b)
	if err != nil {
		return false
	}
	return score > threshold
}
