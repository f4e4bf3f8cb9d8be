package store

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	logging "gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("jsonmock.store")

// Well-known collections created empty when missing from the document.
const (
	Posts   = "posts"
	Forms   = "forms"
	Dataset = "dataset"
)

// Defaults returns the keys every freshly opened document carries.
func Defaults() Document {
	return Document{
		Posts:   []any{},
		Forms:   []any{},
		Dataset: []any{},
	}
}

// DB owns the in-memory document and the backend it is persisted to.
// A mutation holds the write lock from its existence check until the save
// returns. Readers get deep copies. Safe for concurrent use.
type DB struct {
	mu      sync.RWMutex
	backend Backend
	doc     Document

	now    func() time.Time
	lastID int64
}

// Open loads the document from backend and fills in any keys from defaults
// that it lacks. The document is saved again only if defaults were applied.
func Open(backend Backend, defaults Document) (*DB, error) {
	doc, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	var added []string
	for k, v := range defaults {
		if _, ok := doc[k]; !ok {
			doc[k] = deepCopy(v)
			added = append(added, k)
		}
	}
	if len(added) > 0 {
		if err := backend.Save(doc); err != nil {
			return nil, fmt.Errorf("save defaults: %w", err)
		}
		sort.Strings(added)
		log.Debugf("initialised missing keys %v", added)
	}
	return &DB{backend: backend, doc: doc, now: time.Now}, nil
}

// Close closes the backend. The DB must not be used afterwards.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backend.Close()
}

// Names returns the top-level keys of the document in sorted order.
func (d *DB) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.doc))
	for k := range d.doc {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of the whole document.
func (d *DB) Snapshot() Document {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap, _ := deepCopy(d.doc).(map[string]any)
	if snap == nil {
		snap = Document{}
	}
	return snap
}

// commit installs changes into the document and persists it. If the save
// fails the previous values are put back. Callers must hold the write lock.
func (d *DB) commit(changes map[string]any) error {
	type prior struct {
		value   any
		existed bool
	}
	saved := make(map[string]prior, len(changes))
	for k, v := range changes {
		old, ok := d.doc[k]
		saved[k] = prior{old, ok}
		d.doc[k] = v
	}
	if err := d.backend.Save(d.doc); err != nil {
		for k, p := range saved {
			if p.existed {
				d.doc[k] = p.value
			} else {
				delete(d.doc, k)
			}
		}
		log.Errorf("persist document: %v", err)
		return fmt.Errorf("persist document: %w", err)
	}
	return nil
}

// records returns the collection stored at name. A missing key is an empty
// collection. Callers must hold a lock.
func (d *DB) records(name string) ([]any, error) {
	v, ok := d.doc[name]
	if !ok || v == nil {
		return nil, nil
	}
	recs, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotCollection)
	}
	return recs, nil
}

// nextID returns a millisecond timestamp id, bumped past the last one handed
// out so two inserts in the same millisecond still differ. Callers must hold
// the write lock.
func (d *DB) nextID() string {
	ms := d.now().UnixMilli()
	if ms <= d.lastID {
		ms = d.lastID + 1
	}
	d.lastID = ms
	return strconv.FormatInt(ms, 10)
}
