package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// File names used by the local store.
const (
	StudentsFile   = "local_students.json"
	AttendanceFile = "local_attendance.json"
)

type fileIdentity struct {
	Roll         rollString      `json:"roll"`
	Name         string          `json:"name"`
	Encodings    json.RawMessage `json:"encodings"`
	RegisteredAt string          `json:"registered_at"`
}

type fileEvent struct {
	ID        string     `json:"id,omitempty"`
	Roll      rollString `json:"roll"`
	Name      string     `json:"name"`
	Timestamp string     `json:"timestamp"`
	Status    string     `json:"status"`
}

// FileStore keeps identities and events as JSON arrays in two files. Every
// write replaces the whole file through a temp file and rename.
type FileStore struct {
	dir string
	mu  sync.Mutex
	log logger.Logger
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	o := buildOptions(opts)
	return &FileStore{dir: dir, log: o.log}, nil
}

func (s *FileStore) Backend() string { return BackendFile }

func (s *FileStore) Close(context.Context) error { return nil }

func (s *FileStore) ListIdentities(ctx context.Context) (model.Gallery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readIdentities(ctx)
	if err != nil {
		return nil, err
	}
	out := make(model.Gallery, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.toIdentity(ctx, r))
	}
	return out, nil
}

func (s *FileStore) FindByRoll(ctx context.Context, roll string) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readIdentities(ctx)
	if err != nil {
		return model.Identity{}, err
	}
	for _, r := range recs {
		if string(r.Roll) == roll {
			return s.toIdentity(ctx, r), nil
		}
	}
	return model.Identity{}, ErrNotFound
}

func (s *FileStore) InsertIdentity(ctx context.Context, id model.Identity) error {
	raw, err := encodeEncodings(id.Encodings)
	if err != nil {
		return err
	}
	rec, err := json.Marshal(fileIdentity{
		Roll:         rollString(id.Roll),
		Name:         id.Name,
		Encodings:    raw,
		RegisteredAt: formatTimestamp(id.RegisteredAt),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elems, err := s.readArray(StudentsFile)
	if err != nil {
		return err
	}
	for _, r := range decodeRecords[fileIdentity](ctx, s.log, StudentsFile, elems) {
		if string(r.Roll) == id.Roll {
			return ErrDuplicateRoll
		}
	}
	return s.writeJSON(StudentsFile, append(elems, rec))
}

func (s *FileStore) AppendEvent(_ context.Context, ev model.AttendanceEvent) error {
	rec, err := json.Marshal(fileEvent{
		ID:        ev.ID,
		Roll:      rollString(ev.Roll),
		Name:      ev.Name,
		Timestamp: formatTimestamp(ev.Timestamp),
		Status:    ev.Status,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elems, err := s.readArray(AttendanceFile)
	if err != nil {
		return err
	}
	return s.writeJSON(AttendanceFile, append(elems, rec))
}

func (s *FileStore) ListEvents(ctx context.Context, from, to time.Time) ([]model.AttendanceEvent, error) {
	s.mu.Lock()
	elems, err := s.readArray(AttendanceFile)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	recs := decodeRecords[fileEvent](ctx, s.log, AttendanceFile, elems)

	all := make([]model.AttendanceEvent, 0, len(recs))
	for _, r := range recs {
		ts, err := parseTimestamp(r.Timestamp)
		if err != nil {
			s.log.Warn(ctx, "skipping attendance record", logger.String("roll", string(r.Roll)), logger.Error(err))
			continue
		}
		all = append(all, model.AttendanceEvent{
			ID:        r.ID,
			Roll:      string(r.Roll),
			Name:      r.Name,
			Timestamp: ts,
			Status:    r.Status,
		})
	}
	return filterEvents(all, from, to), nil
}

func (s *FileStore) toIdentity(ctx context.Context, r fileIdentity) model.Identity {
	id := model.Identity{
		Roll:      string(r.Roll),
		Name:      r.Name,
		Encodings: lenientEncodings(ctx, s.log, string(r.Roll), r.Encodings),
	}
	if r.RegisteredAt != "" {
		if ts, err := parseTimestamp(r.RegisteredAt); err == nil {
			id.RegisteredAt = ts
		}
	}
	return id
}

// Must be called with s.mu held.
func (s *FileStore) readIdentities(ctx context.Context) ([]fileIdentity, error) {
	elems, err := s.readArray(StudentsFile)
	if err != nil {
		return nil, err
	}
	return decodeRecords[fileIdentity](ctx, s.log, StudentsFile, elems), nil
}

// readArray returns the raw elements of the JSON array in name, or nil when
// the file does not exist yet. Elements are left undecoded so a rewrite keeps
// records this version cannot read. Must be called with s.mu held.
func (s *FileStore) readArray(name string) ([]json.RawMessage, error) {
	content, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, name, err)
	}
	if len(content) == 0 {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(content, &elems); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrUnavailable, name, err)
	}
	return elems, nil
}

// decodeRecords decodes each element on its own, logging and skipping the
// ones that do not fit T.
func decodeRecords[T any](ctx context.Context, log logger.Logger, name string, elems []json.RawMessage) []T {
	out := make([]T, 0, len(elems))
	for i, raw := range elems {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Warn(ctx, "skipping unreadable record",
				logger.String("file", name), logger.Int("index", i), logger.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out
}

// writeJSON replaces name atomically. Must be called with s.mu held.
func (s *FileStore) writeJSON(name string, v any) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrUnavailable, name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s: %w", ErrUnavailable, name, err)
	}
	return nil
}
