package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// rollString decodes a roll stored either as a JSON string or a number.
type rollString string

func (r *rollString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = rollString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("roll: %w", err)
	}
	*r = rollString(n.String())
	return nil
}

// decodeEncodings parses a JSON list of descriptors.
func decodeEncodings(raw []byte) ([]model.Descriptor, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []model.Descriptor
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode encodings: %w", err)
	}
	return out, nil
}

func encodeEncodings(enc []model.Descriptor) ([]byte, error) {
	if enc == nil {
		enc = []model.Descriptor{}
	}
	return json.Marshal(enc)
}

// lenientEncodings keeps a record readable when its encodings are corrupt.
// The matcher skips identities without a descriptor.
func lenientEncodings(ctx context.Context, log logger.Logger, roll string, raw []byte) []model.Descriptor {
	enc, err := decodeEncodings(raw)
	if err != nil {
		log.Warn(ctx, "unreadable encodings", logger.String("roll", roll), logger.Error(err))
		return nil
	}
	return enc
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts RFC 3339 and naive ISO-8601 (taken as UTC).
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// filterEvents keeps events in [from, to) and orders them newest first.
func filterEvents(all []model.AttendanceEvent, from, to time.Time) []model.AttendanceEvent {
	out := make([]model.AttendanceEvent, 0, len(all))
	for _, ev := range all {
		if ev.Timestamp.Before(from) || !ev.Timestamp.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
