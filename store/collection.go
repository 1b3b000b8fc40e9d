package store

import "context"

// Collection is a unique-key set of records of one kind.
type Collection interface {
	// Insert adds rec keyed by rec.ID. Returns ErrDuplicateKey if the ID is present.
	Insert(ctx context.Context, rec *Record) error

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns every record. Order is not significant.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes the record with the given ID. Absent IDs are not an error.
	Delete(ctx context.Context, id string) error

	// Replace overwrites the record stored under rec.ID. Returns ErrNotFound if absent.
	Replace(ctx context.Context, rec *Record) error
}

// Backend provides the collection for each kind.
type Backend interface {
	Collection(kind Kind) Collection
}
