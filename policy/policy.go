// Package policy gates writes to the document store.
package policy

import (
	"errors"
	"strings"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/stevemurr/json-mock-server/store"
)

var log = logging.MustGetLogger("jsonmock.policy")

// ErrForbidden is returned for any write while the guard is read-only.
var ErrForbidden = errors.New("update not allowed in production environment!")

// IsProduction reports whether environment names the production mode.
func IsProduction(environment string) bool {
	return strings.EqualFold(strings.TrimSpace(environment), "production")
}

// Guard exposes the store's operations and refuses every mutating one,
// before it reaches the store, when readOnly is set. Conflict and
// not-found checks are done by the store under its write lock.
type Guard struct {
	db       *store.DB
	readOnly bool
}

// New returns a Guard over db. When readOnly is true all writes fail with
// ErrForbidden.
func New(db *store.DB, readOnly bool) *Guard {
	return &Guard{db: db, readOnly: readOnly}
}

// ReadOnly reports whether writes are refused.
func (g *Guard) ReadOnly() bool { return g.readOnly }

func (g *Guard) check(op, name string) error {
	if g.readOnly {
		log.Warningf("refused %s on %q: write gate is closed", op, name)
		return ErrForbidden
	}
	return nil
}

func (g *Guard) Names() []string {
	return g.db.Names()
}

func (g *Guard) GetAll(name string) any {
	return g.db.GetAll(name)
}

func (g *Guard) GetByID(name string, id store.ID) (map[string]any, error) {
	return g.db.GetByID(name, id)
}

func (g *Guard) Insert(name string, record map[string]any) (map[string]any, error) {
	if err := g.check("insert", name); err != nil {
		return nil, err
	}
	return g.db.Insert(name, record)
}

func (g *Guard) InsertWithNewID(name string, record map[string]any) (map[string]any, error) {
	if err := g.check("insert", name); err != nil {
		return nil, err
	}
	return g.db.InsertWithNewID(name, record)
}

func (g *Guard) InsertIfAbsent(name string, record map[string]any) (map[string]any, error) {
	if err := g.check("insert", name); err != nil {
		return nil, err
	}
	return g.db.InsertIfAbsent(name, record)
}

func (g *Guard) Update(name string, id store.ID, patch map[string]any) (map[string]any, error) {
	if err := g.check("update", name); err != nil {
		return nil, err
	}
	return g.db.Update(name, id, patch)
}

func (g *Guard) Upsert(name string, id store.ID, field string, value any) (map[string]any, error) {
	if err := g.check("upsert", name); err != nil {
		return nil, err
	}
	return g.db.Upsert(name, id, field, value)
}

func (g *Guard) Remove(name string, id *store.ID) ([]any, error) {
	if err := g.check("remove", name); err != nil {
		return nil, err
	}
	return g.db.Remove(name, id)
}

func (g *Guard) SetRaw(name string, value any) error {
	if err := g.check("set", name); err != nil {
		return err
	}
	return g.db.SetRaw(name, value)
}

func (g *Guard) SetRawMany(values map[string]any) error {
	if err := g.check("set", "<root>"); err != nil {
		return err
	}
	return g.db.SetRawMany(values)
}
