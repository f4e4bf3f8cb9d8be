// Package store holds the single JSON document served by the mock server,
// the backends that persist it, and the collection operations applied to it.
package store

import "errors"

// Document is the whole persisted state: collection name -> collection value.
// A collection value is either []any of records or any other JSON value
// stored under an ad-hoc key.
type Document = map[string]any

var (
	// ErrNotFound is returned when no record matches the requested id.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert would duplicate an existing id.
	ErrConflict = errors.New("conflict")
	// ErrNotCollection is returned when a record operation targets a key
	// whose value is not an array of records.
	ErrNotCollection = errors.New("not a collection")
	// ErrMissingID is returned when a record carries no usable id.
	ErrMissingID = errors.New("missing id")
)

// Backend persists a Document. Implementations must be safe to call from a
// single writer while the DB holds its lock; they are not required to be
// safe for concurrent Save calls.
type Backend interface {
	// Load returns the persisted document, or an empty one if nothing
	// has been saved yet.
	Load() (Document, error)

	// Save replaces the persisted document in full. A failed Save must
	// leave the previous contents intact.
	Save(doc Document) error

	// Close releases the underlying storage.
	Close() error
}
