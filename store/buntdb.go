package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/buntdb"
)

// BuntBackend stores each top-level key of the document as a BuntDB key.
// Opened on ":memory:" it is the ephemeral "memory" backend.
type BuntBackend struct {
	db *buntdb.DB
}

func NewBuntBackend(path string) (*BuntBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		var cfg buntdb.Config
		if err := db.ReadConfig(&cfg); err != nil {
			db.Close()
			return nil, err
		}
		cfg.SyncPolicy = buntdb.Always
		if err := db.SetConfig(cfg); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &BuntBackend{db: db}, nil
}

func (b *BuntBackend) Close() error {
	return b.db.Close()
}

func (b *BuntBackend) Load() (Document, error) {
	doc := Document{}
	var decodeErr error
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, raw string) bool {
			v, err := decodeValue([]byte(raw))
			if err != nil {
				decodeErr = err
				return false
			}
			doc[key] = v
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return doc, nil
}

func (b *BuntBackend) Save(doc Document) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if err := tx.DeleteAll(); err != nil {
			return err
		}
		for name, v := range doc {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(name, string(raw), nil); err != nil {
				return err
			}
		}
		return nil
	})
}
