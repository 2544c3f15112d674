// Package matcher scans a gallery snapshot for identities whose first stored
// descriptor matches a candidate. The same fold backs both the enrollment
// duplicate check and recognition.
package matcher

import (
	"errors"
	"fmt"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/similarity"
)

// SkipReason classifies why a gallery entry took no part in a scan.
type SkipReason string

// Skip reasons.
const (
	SkipNoDescriptor   SkipReason = "no_descriptor"
	SkipLengthMismatch SkipReason = "length_mismatch"
	SkipDegenerate     SkipReason = "degenerate"
	SkipCompareFailed  SkipReason = "compare_failed"
)

// Skip records one gallery entry passed over during a scan.
type Skip struct {
	Index  int
	Roll   string
	Reason SkipReason
	Err    error
}

// Scan summarizes one pass over a gallery.
type Scan struct {
	Scanned  int
	Compared int
	Skipped  []Skip
}

// SkippedByReason counts skipped entries per reason.
func (s Scan) SkippedByReason() map[SkipReason]int {
	out := make(map[SkipReason]int, len(s.Skipped))
	for _, sk := range s.Skipped {
		out[sk.Reason]++
	}
	return out
}

// Hit is a gallery entry that matched the candidate.
type Hit struct {
	Identity model.Identity
	Index    int
	Score    float64
}

// fold compares candidate against the first descriptor of every identity in
// order. Entries that cannot be compared are skipped and recorded, never
// fatal. With stopAtFirst the first entry above threshold wins; otherwise the
// highest score wins and ties keep the earlier entry.
func fold(c similarity.Comparator, candidate model.Descriptor, gallery model.Gallery, threshold float64, stopAtFirst bool) (*Hit, Scan) {
	var (
		scan Scan
		best *Hit
	)
	if len(candidate) == 0 {
		return nil, scan
	}
	for i, id := range gallery {
		scan.Scanned++
		stored := id.Primary()
		if len(stored) == 0 {
			scan.Skipped = append(scan.Skipped, Skip{Index: i, Roll: id.Roll, Reason: SkipNoDescriptor})
			continue
		}
		score, err := compare(c, candidate, stored)
		if err != nil {
			scan.Skipped = append(scan.Skipped, Skip{Index: i, Roll: id.Roll, Reason: reasonFor(err), Err: err})
			continue
		}
		scan.Compared++
		if score <= threshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &Hit{Identity: id, Index: i, Score: score}
		}
		if stopAtFirst {
			break
		}
	}
	return best, scan
}

// compare shields the scan from comparators that panic on malformed data.
func compare(c similarity.Comparator, a, b model.Descriptor) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("comparator panic: %v", r)
		}
	}()
	return c.Score(a, b)
}

func reasonFor(err error) SkipReason {
	switch {
	case errors.Is(err, similarity.ErrMissingDescriptor):
		return SkipNoDescriptor
	case errors.Is(err, similarity.ErrLengthMismatch):
		return SkipLengthMismatch
	case errors.Is(err, similarity.ErrDegenerate):
		return SkipDegenerate
	default:
		return SkipCompareFailed
	}
}
