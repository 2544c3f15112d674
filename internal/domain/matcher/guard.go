package matcher

import (
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/similarity"
)

// DuplicateResult is Unique when Duplicate is false, otherwise DuplicateOf
// the identity named by Roll and Name.
type DuplicateResult struct {
	Duplicate bool
	Roll      string
	Name      string
	Score     float64
}

// Guard rejects enrollments whose face is already enrolled. It runs
// independently of the roll-uniqueness check.
type Guard struct {
	comparator similarity.Comparator
	threshold  float64
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardThreshold overrides the enrollment threshold.
func WithGuardThreshold(t float64) GuardOption {
	return func(g *Guard) { g.threshold = t }
}

// NewGuard creates a Guard with the strict enrollment threshold.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{comparator: similarity.NewPearson(), threshold: similarity.EnrollThreshold}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Threshold returns the configured threshold.
func (g *Guard) Threshold() float64 { return g.threshold }

// CheckDuplicate scans the gallery in order and stops at the first identity
// whose first descriptor matches candidate.
func (g *Guard) CheckDuplicate(candidate model.Descriptor, gallery model.Gallery) (DuplicateResult, Scan) {
	hit, scan := fold(g.comparator, candidate, gallery, g.threshold, true)
	if hit == nil {
		return DuplicateResult{}, scan
	}
	return DuplicateResult{
		Duplicate: true,
		Roll:      hit.Identity.Roll,
		Name:      hit.Identity.Name,
		Score:     hit.Score,
	}, scan
}
