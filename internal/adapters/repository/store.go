// Package repository persists enrolled identities and attendance events.
package repository

import (
	"context"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

// Backend names.
const (
	BackendMongo = "mongo"
	BackendFile  = "file"
	BackendMySQL = "mysql"
)

// IdentityStore reads and writes enrolled identities.
type IdentityStore interface {
	// ListIdentities returns every identity in insertion order. Records whose
	// encodings cannot be decoded are returned with nil Encodings.
	ListIdentities(ctx context.Context) (model.Gallery, error)

	// FindByRoll returns ErrNotFound if roll is unknown.
	FindByRoll(ctx context.Context, roll string) (model.Identity, error)

	// InsertIdentity returns ErrDuplicateRoll if roll is already taken.
	InsertIdentity(ctx context.Context, id model.Identity) error
}

// EventStore appends and lists attendance events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev model.AttendanceEvent) error

	// ListEvents returns events with from <= timestamp < to, newest first.
	ListEvents(ctx context.Context, from, to time.Time) ([]model.AttendanceEvent, error)
}

// Store is a complete persistence backend.
type Store interface {
	IdentityStore
	EventStore

	Backend() string
	Close(ctx context.Context) error
}
