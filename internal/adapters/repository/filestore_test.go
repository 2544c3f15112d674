package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFileStore_Identities(t *testing.T) {
	Convey("Given an empty file store", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		s, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)
		So(s.Backend(), ShouldEqual, repository.BackendFile)

		Convey("Then the gallery is empty and lookups miss", func() {
			g, err := s.ListIdentities(ctx)
			So(err, ShouldBeNil)
			So(g, ShouldBeEmpty)

			_, err = s.FindByRoll(ctx, "101")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When identities are inserted", func() {
			at := time.Date(2026, 2, 3, 8, 30, 0, 0, time.UTC)
			So(s.InsertIdentity(ctx, model.Identity{
				Roll: "101", Name: "Alice", Encodings: []model.Descriptor{{1, 2, 3}}, RegisteredAt: at,
			}), ShouldBeNil)
			So(s.InsertIdentity(ctx, model.Identity{
				Roll: "102", Name: "Bob", Encodings: []model.Descriptor{{4, 5, 6}}, RegisteredAt: at,
			}), ShouldBeNil)

			Convey("Then they are listed in insertion order", func() {
				g, err := s.ListIdentities(ctx)
				So(err, ShouldBeNil)
				So(len(g), ShouldEqual, 2)
				So(g[0].Roll, ShouldEqual, "101")
				So(g[1].Roll, ShouldEqual, "102")
				So(g[0].Primary(), ShouldResemble, model.Descriptor{1, 2, 3})
				So(g[0].RegisteredAt.Equal(at), ShouldBeTrue)
			})

			Convey("Then they can be found by roll", func() {
				id, err := s.FindByRoll(ctx, "102")
				So(err, ShouldBeNil)
				So(id.Name, ShouldEqual, "Bob")
			})

			Convey("Then a second insert of the same roll is rejected", func() {
				err := s.InsertIdentity(ctx, model.Identity{Roll: "101", Name: "Mallory"})
				So(errors.Is(err, repository.ErrDuplicateRoll), ShouldBeTrue)

				g, _ := s.ListIdentities(ctx)
				So(len(g), ShouldEqual, 2)
			})

			Convey("Then a reopened store sees the same data", func() {
				again, err := repository.NewFileStore(dir)
				So(err, ShouldBeNil)
				g, err := again.ListIdentities(ctx)
				So(err, ShouldBeNil)
				So(len(g), ShouldEqual, 2)
			})

			Convey("Then no temp file is left behind", func() {
				_, err := os.Stat(filepath.Join(dir, repository.StudentsFile+".tmp"))
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})

		Convey("When many goroutines enroll the same roll", func() {
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if s.InsertIdentity(ctx, model.Identity{Roll: "777", Name: "Race"}) == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one insert succeeds", func() {
				So(wins, ShouldEqual, 1)
			})
		})
	})
}

func TestFileStore_LegacyRecords(t *testing.T) {
	Convey("Given a students file written by an older deployment", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		legacy := `[
  {"roll": "1", "name": "Broken", "encodings": "not-a-list", "registered_at": "2024-05-01T10:00:00.123456Z"},
  {"roll": "2", "name": "Missing"},
  {"roll": "3", "name": "Ints", "encodings": [[1, 2, 3]], "registered_at": "2024-05-01T10:00:00.123456"}
]`
		So(os.WriteFile(filepath.Join(dir, repository.StudentsFile), []byte(legacy), 0o644), ShouldBeNil)
		s, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)

		Convey("When listing identities", func() {
			g, err := s.ListIdentities(ctx)

			Convey("Then undecodable encodings become empty instead of failing the read", func() {
				So(err, ShouldBeNil)
				So(len(g), ShouldEqual, 3)
				So(g[0].Encodings, ShouldBeNil)
				So(g[0].RegisteredAt.IsZero(), ShouldBeFalse)
				So(g[1].Encodings, ShouldBeNil)
				So(g[2].Primary(), ShouldResemble, model.Descriptor{1, 2, 3})
				So(g[2].RegisteredAt.IsZero(), ShouldBeFalse)
			})
		})
	})

	Convey("Given a students file mixing numeric rolls and malformed elements", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		mixed := `[
  {"roll": 101, "name": "Numeric", "encodings": [[1, 2, 3]]},
  "garbage",
  {"roll": true, "name": "Bool"},
  {"roll": "102", "name": "Valid", "encodings": [[4, 5, 6]]}
]`
		So(os.WriteFile(filepath.Join(dir, repository.StudentsFile), []byte(mixed), 0o644), ShouldBeNil)
		s, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)

		Convey("Then listing skips the unreadable elements and keeps the rest", func() {
			g, err := s.ListIdentities(ctx)
			So(err, ShouldBeNil)
			So(len(g), ShouldEqual, 2)
			So(g[0].Roll, ShouldEqual, "101")
			So(g[1].Roll, ShouldEqual, "102")
			So(g[1].Primary(), ShouldResemble, model.Descriptor{4, 5, 6})
		})

		Convey("Then a numeric roll is found by its string form", func() {
			id, err := s.FindByRoll(ctx, "101")
			So(err, ShouldBeNil)
			So(id.Name, ShouldEqual, "Numeric")
		})

		Convey("When a new identity is inserted", func() {
			So(s.InsertIdentity(ctx, model.Identity{Roll: "103", Name: "New"}), ShouldBeNil)

			Convey("Then the unreadable elements are still on disk", func() {
				content, err := os.ReadFile(filepath.Join(dir, repository.StudentsFile))
				So(err, ShouldBeNil)
				So(string(content), ShouldContainSubstring, "garbage")

				g, err := s.ListIdentities(ctx)
				So(err, ShouldBeNil)
				So(len(g), ShouldEqual, 3)
				So(g[2].Roll, ShouldEqual, "103")
			})

			Convey("Then the numeric roll still blocks a duplicate", func() {
				err := s.InsertIdentity(ctx, model.Identity{Roll: "101", Name: "Again"})
				So(errors.Is(err, repository.ErrDuplicateRoll), ShouldBeTrue)
			})
		})
	})

	Convey("Given a students file that is not JSON", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(filepath.Join(dir, repository.StudentsFile), []byte("{"), 0o644), ShouldBeNil)
		s, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)

		Convey("Then reads fail as unavailable", func() {
			_, err := s.ListIdentities(context.Background())
			So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestFileStore_Events(t *testing.T) {
	Convey("Given a file store with events across two days", t, func() {
		ctx := context.Background()
		s, err := repository.NewFileStore(t.TempDir())
		So(err, ShouldBeNil)

		day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		events := []model.AttendanceEvent{
			{ID: "a", Roll: "101", Name: "Alice", Timestamp: day.Add(9 * time.Hour), Status: model.StatusPresent},
			{ID: "b", Roll: "102", Name: "Bob", Timestamp: day.Add(-time.Hour), Status: model.StatusPresent},
			{ID: "c", Roll: "101", Name: "Alice", Timestamp: day.Add(15 * time.Hour), Status: model.StatusPresent},
			{ID: "d", Roll: "103", Name: "Carol", Timestamp: day.Add(24 * time.Hour), Status: model.StatusPresent},
		}
		for _, ev := range events {
			So(s.AppendEvent(ctx, ev), ShouldBeNil)
		}

		Convey("When listing the day", func() {
			got, err := s.ListEvents(ctx, day, day.Add(24*time.Hour))

			Convey("Then only that day's events are returned newest first", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].ID, ShouldEqual, "c")
				So(got[1].ID, ShouldEqual, "a")
				So(got[0].Status, ShouldEqual, model.StatusPresent)
			})
		})

		Convey("When the attendance file holds a malformed element", func() {
			dir := t.TempDir()
			content := `[
  7,
  {"id": "x", "roll": 104, "name": "Dan", "timestamp": "2026-03-10T11:00:00", "status": "present"}
]`
			So(os.WriteFile(filepath.Join(dir, repository.AttendanceFile), []byte(content), 0o644), ShouldBeNil)
			other, err := repository.NewFileStore(dir)
			So(err, ShouldBeNil)

			Convey("Then the readable events are still reported", func() {
				got, err := other.ListEvents(ctx, day, day.Add(24*time.Hour))
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].Roll, ShouldEqual, "104")
			})

			Convey("Then appends keep working", func() {
				So(other.AppendEvent(ctx, events[0]), ShouldBeNil)
				got, err := other.ListEvents(ctx, day, day.Add(24*time.Hour))
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
			})
		})

		Convey("When the same roll is appended twice", func() {
			ev := model.AttendanceEvent{ID: "e", Roll: "101", Name: "Alice", Timestamp: day.Add(10 * time.Hour), Status: model.StatusPresent}
			So(s.AppendEvent(ctx, ev), ShouldBeNil)

			Convey("Then both marks are kept", func() {
				got, err := s.ListEvents(ctx, day, day.Add(24*time.Hour))
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 3)
			})
		})
	})
}
