package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity doesn't exist in its collection.
	ErrNotFound = errors.New("carte: entity not found")

	// ErrParentNotFound is returned when a child is created under a missing parent.
	ErrParentNotFound = errors.New("carte: parent entity not found")

	// ErrDuplicateKey is returned when inserting an entity whose ID is already present.
	ErrDuplicateKey = errors.New("carte: duplicate key")

	// ErrImmutableField is returned when a patch would change id or the parent key.
	ErrImmutableField = errors.New("carte: field is immutable")

	// ErrInvalidField is returned when a structural field has the wrong JSON type.
	ErrInvalidField = errors.New("carte: invalid field")
)

// NotFoundError reports which kind of entity was missing.
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.Kind.Title() + " not found"
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(kind Kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// parentNotFound matches both ErrParentNotFound and ErrNotFound, and unwraps
// to the parent's NotFoundError so callers can report the parent kind.
func parentNotFound(kind Kind, id string) error {
	return fmt.Errorf("%w: %w", ErrParentNotFound, notFound(kind, id))
}
