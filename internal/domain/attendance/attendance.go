// Package attendance turns a recognized identity into a persisted attendance
// event.
package attendance

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/model"
)

// Appender persists attendance events.
type Appender interface {
	AppendEvent(ctx context.Context, ev model.AttendanceEvent) error
}

const lockStripes = 64

// Recorder builds and appends attendance events.
type Recorder struct {
	store   Appender
	deduper dedupe.Deduper
	newID   func() string

	// With a deduper, a roll's admission and append happen under its stripe
	// so a concurrent mark never sees an admission that later fails.
	stripes [lockStripes]sync.Mutex
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithDeduper suppresses repeated marks through d.
func WithDeduper(d dedupe.Deduper) Option {
	return func(r *Recorder) { r.deduper = d }
}

// WithIDGenerator overrides event ID generation.
func WithIDGenerator(f func() string) Option {
	return func(r *Recorder) {
		if f != nil {
			r.newID = f
		}
	}
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Appender, opts ...Option) *Recorder {
	r := &Recorder{store: store, newID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends a "present" event for id at ts. suppressed is true when the
// deduper rejected the mark; nothing is written in that case. A failed append
// is returned and the mark is forgotten so the next attempt can succeed.
func (r *Recorder) Record(ctx context.Context, id model.Identity, ts time.Time) (ev model.AttendanceEvent, suppressed bool, err error) {
	if r.deduper != nil {
		mu := r.stripe(id.Roll)
		mu.Lock()
		defer mu.Unlock()
		if r.deduper.SeenAndRecord(ctx, id.Roll, ts) {
			return model.AttendanceEvent{}, true, nil
		}
	}

	ev = model.AttendanceEvent{
		ID:        r.newID(),
		Roll:      id.Roll,
		Name:      id.Name,
		Timestamp: ts.UTC(),
		Status:    model.StatusPresent,
	}
	if err := r.store.AppendEvent(ctx, ev); err != nil {
		if r.deduper != nil {
			r.deduper.Unrecord(ctx, id.Roll)
		}
		return model.AttendanceEvent{}, false, err
	}
	return ev, false, nil
}

func (r *Recorder) stripe(roll string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roll))
	return &r.stripes[h.Sum32()%lockStripes]
}
