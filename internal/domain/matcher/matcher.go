package matcher

import (
	"fmt"
	"strings"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/similarity"
)

// Policy selects which matching identity recognition returns.
type Policy string

// Policies. First returns the earliest match in gallery order; Best returns
// the highest-scoring match.
const (
	PolicyFirst Policy = "first"
	PolicyBest  Policy = "best"
)

// ParsePolicy accepts "first" or "best" (case-insensitive); empty means first.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyBest:
		return PolicyBest, nil
	default:
		return "", fmt.Errorf("unknown match policy %q", s)
	}
}

// Matcher selects the enrolled identity a live capture belongs to.
type Matcher struct {
	comparator similarity.Comparator
	threshold  float64
	policy     Policy
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold overrides the recognition threshold.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// WithPolicy sets the selection policy.
func WithPolicy(p Policy) Option {
	return func(m *Matcher) {
		if p == PolicyFirst || p == PolicyBest {
			m.policy = p
		}
	}
}

// WithComparator overrides the comparator.
func WithComparator(c similarity.Comparator) Option {
	return func(m *Matcher) {
		if c != nil {
			m.comparator = c
		}
	}
}

// New creates a Matcher with the lenient recognition threshold and the
// first-match policy.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		comparator: similarity.NewPearson(),
		threshold:  similarity.RecognizeThreshold,
		policy:     PolicyFirst,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Policy returns the configured policy.
func (m *Matcher) Policy() Policy { return m.policy }

// Match returns the selected identity, or ok=false for NoMatch.
func (m *Matcher) Match(candidate model.Descriptor, gallery model.Gallery) (hit Hit, ok bool, scan Scan) {
	h, scan := fold(m.comparator, candidate, gallery, m.threshold, m.policy == PolicyFirst)
	if h == nil {
		return Hit{}, false, scan
	}
	return *h, true, scan
}
