// Package envelope stores arbitrary JSON values wrapped in {id, <field>}
// records, as used by the forms and dataset collections.
package envelope

import (
	"errors"

	"github.com/stevemurr/json-mock-server/store"
)

// Store is the subset of store operations a Repository needs. Both
// *store.DB and *policy.Guard satisfy it.
type Store interface {
	GetAll(name string) any
	GetByID(name string, id store.ID) (map[string]any, error)
	Upsert(name string, id store.ID, field string, value any) (map[string]any, error)
	Remove(name string, id *store.ID) ([]any, error)
}

// Repository keeps values in collection, each wrapped as {id, field: value}.
type Repository struct {
	s          Store
	collection string
	field      string
}

func New(s Store, collection, field string) *Repository {
	return &Repository{s: s, collection: collection, field: field}
}

// Forms returns the repository for form definitions: {id, form}.
func Forms(s Store) *Repository { return New(s, store.Forms, "form") }

// Dataset returns the repository for datasets: {id, data}.
func Dataset(s Store) *Repository { return New(s, store.Dataset, "data") }

func (r *Repository) Collection() string { return r.collection }

// Put stores value under id, replacing any previous value wholesale.
func (r *Repository) Put(id int64, value any) error {
	_, err := r.s.Upsert(r.collection, store.IntID(id), r.field, value)
	return err
}

// Get returns the unwrapped value stored under id. An envelope without the
// field is reported as not found.
func (r *Repository) Get(id int64) (any, error) {
	rec, err := r.s.GetByID(r.collection, store.IntID(id))
	if err != nil {
		return nil, err
	}
	v, ok := rec[r.field]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

// List returns the stored envelopes as they are, without unwrapping.
func (r *Repository) List() any {
	return r.s.GetAll(r.collection)
}

// Delete removes the envelope with id. Deleting a missing id succeeds.
func (r *Repository) Delete(id int64) error {
	sid := store.IntID(id)
	_, err := r.s.Remove(r.collection, &sid)
	return err
}

// IsNotFound reports whether err means the envelope does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
