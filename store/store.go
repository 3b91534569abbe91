// Package store persists ticket records.
//
// A Record (ticket plus artifacts, embedding and score) is read and written
// as a unit through Update, which runs a read-modify-write under a lock
// scoped to one ticket. Workers updating different tickets do not wait on
// each other in MemStore; SQLStore serializes writers in SQLite itself.
package store

import (
	"context"
	"fmt"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/ticket"
)

// ErrNotFound is returned for unknown ticket ids.
var ErrNotFound = prerrors.ErrTicketNotFound

// UpdateFunc mutates a record in place. A record for an unknown ticket has
// a nil Ticket; leaving it nil stores nothing. Returning an error discards
// every change.
type UpdateFunc func(r *ticket.Record) error

// Store is the persistence boundary of the pipeline engine.
type Store interface {
	// Get returns a copy of the ticket's record.
	Get(ctx context.Context, id string) (*ticket.Record, error)

	// Update applies fn atomically to the ticket's record.
	Update(ctx context.Context, id string, fn UpdateFunc) error

	// List returns copies of every record, ordered by ticket id.
	List(ctx context.Context) ([]*ticket.Record, error)

	// ReplaceLinks replaces every link originating at fromID.
	ReplaceLinks(ctx context.Context, fromID string, links []ticket.RelatedLink) error

	// Links returns the links originating at fromID, best first.
	Links(ctx context.Context, fromID string) ([]ticket.RelatedLink, error)

	Close() error
}

func notFound(id string) error {
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}
