// Package store provides the menu/category/dish data model with referential
// integrity over pluggable collections.
//
// The hierarchy is fixed: a Menu has many Categories, a Category has many
// Dishes. Every record carries a server-assigned id, a parent id (empty for
// menus) and an ordered bag of opaque fields.
//
// # Key Features
//
//   - Server-assigned identifiers (client-supplied ids are discarded)
//   - Existence guard on every id-scoped operation
//   - Optional parent validation on child creation
//   - Cascading deletes computed as a plan of id-sets per kind
//   - Shallow merge updates that keep field order
//   - One serialized region per operation
//
// # Backends
//
// A [Backend] hands out one [Collection] per [Kind]. [NewMemoryBackend] is the
// process-local default; network backends live under backend/.
//
//	s := store.New(store.NewMemoryBackend(), store.DefaultConfig())
//	menu, err := s.Create(ctx, store.KindMenu, fields)
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - entity doesn't exist (see [NotFoundError])
//   - [ErrParentNotFound] - parent validation failed on create
//   - [ErrDuplicateKey] - entity with ID already exists
//   - [ErrImmutableField] - patch tried to change id or parent id
//   - [ErrInvalidField] - a structural field has the wrong JSON type
package store
