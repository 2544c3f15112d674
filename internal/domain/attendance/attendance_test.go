package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/domain/attendance"
	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type memAppender struct {
	events []model.AttendanceEvent
	err    error
}

func (m *memAppender) AppendEvent(_ context.Context, ev model.AttendanceEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

// gatedAppender fails its first append once release is closed.
type gatedAppender struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
	events  []model.AttendanceEvent
}

func (g *gatedAppender) AppendEvent(_ context.Context, ev model.AttendanceEvent) error {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		close(g.entered)
		<-g.release
		return errors.New("disk full")
	}
	g.mu.Lock()
	g.events = append(g.events, ev)
	g.mu.Unlock()
	return nil
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	alice := model.Identity{Roll: "101", Name: "Alice"}
	ts := time.Date(2026, 5, 4, 9, 15, 0, 0, time.FixedZone("X", 3600))

	Convey("Given a recorder without a deduper", t, func() {
		store := &memAppender{}
		r := attendance.NewRecorder(store, attendance.WithIDGenerator(func() string { return "fixed" }))

		Convey("When recording a recognition", func() {
			ev, suppressed, err := r.Record(ctx, alice, ts)

			Convey("Then a present event is appended in UTC", func() {
				So(err, ShouldBeNil)
				So(suppressed, ShouldBeFalse)
				So(ev.ID, ShouldEqual, "fixed")
				So(ev.Roll, ShouldEqual, "101")
				So(ev.Name, ShouldEqual, "Alice")
				So(ev.Status, ShouldEqual, model.StatusPresent)
				So(ev.Timestamp.Location().String(), ShouldEqual, "UTC")
				So(ev.Timestamp.Equal(ts), ShouldBeTrue)
				So(store.events, ShouldResemble, []model.AttendanceEvent{ev})
			})
		})

		Convey("When recording twice", func() {
			_, _, _ = r.Record(ctx, alice, ts)
			_, suppressed, err := r.Record(ctx, alice, ts)

			Convey("Then both marks are stored", func() {
				So(err, ShouldBeNil)
				So(suppressed, ShouldBeFalse)
				So(len(store.events), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a recorder with default IDs", t, func() {
		store := &memAppender{}
		r := attendance.NewRecorder(store)

		Convey("Then each event gets a distinct ID", func() {
			a, _, _ := r.Record(ctx, alice, ts)
			b, _, _ := r.Record(ctx, alice, ts)
			So(a.ID, ShouldNotBeEmpty)
			So(a.ID, ShouldNotEqual, b.ID)
		})
	})

	Convey("Given a recorder with a five minute window", t, func() {
		store := &memAppender{}
		d := dedupe.NewWindowDeduper(dedupe.WithWindow(5 * time.Minute))
		r := attendance.NewRecorder(store, attendance.WithDeduper(d))

		Convey("When the same roll is recognized twice within the window", func() {
			_, first, err1 := r.Record(ctx, alice, ts)
			_, second, err2 := r.Record(ctx, alice, ts.Add(time.Minute))

			Convey("Then only the first mark is stored", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(len(store.events), ShouldEqual, 1)
			})
		})

		Convey("When the append fails", func() {
			store.err = errors.New("disk full")
			_, suppressed, err := r.Record(ctx, alice, ts)

			Convey("Then the error is returned and the next attempt is not suppressed", func() {
				So(err, ShouldNotBeNil)
				So(suppressed, ShouldBeFalse)

				store.err = nil
				_, suppressed, err = r.Record(ctx, alice, ts.Add(time.Second))
				So(err, ShouldBeNil)
				So(suppressed, ShouldBeFalse)
				So(len(store.events), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a windowed recorder whose first append is slow and fails", t, func() {
		store := &gatedAppender{entered: make(chan struct{}), release: make(chan struct{})}
		d := dedupe.NewWindowDeduper(dedupe.WithWindow(5 * time.Minute))
		r := attendance.NewRecorder(store, attendance.WithDeduper(d))

		Convey("When a second mark for the same roll arrives during that append", func() {
			firstErr := make(chan error, 1)
			go func() {
				_, _, err := r.Record(ctx, alice, ts)
				firstErr <- err
			}()
			<-store.entered

			type outcome struct {
				suppressed bool
				err        error
			}
			second := make(chan outcome, 1)
			go func() {
				_, suppressed, err := r.Record(ctx, alice, ts.Add(time.Second))
				second <- outcome{suppressed, err}
			}()
			time.Sleep(20 * time.Millisecond)
			close(store.release)

			Convey("Then the second mark is stored instead of being reported as already marked", func() {
				So(<-firstErr, ShouldNotBeNil)
				got := <-second
				So(got.err, ShouldBeNil)
				So(got.suppressed, ShouldBeFalse)
				So(len(store.events), ShouldEqual, 1)
			})
		})
	})
}
