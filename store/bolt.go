package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

var collectionsBucket = []byte("collections")

// BoltBackend stores each top-level key of the document under its own key in
// a single BoltDB bucket.
type BoltBackend struct {
	db *bolt.DB
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o644, &bolt.Options{
		Timeout: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(collectionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func (b *BoltBackend) Load() (Document, error) {
	doc := Document{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(collectionsBucket).ForEach(func(k, raw []byte) error {
			v, err := decodeValue(raw)
			if err != nil {
				return err
			}
			doc[string(k)] = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Save drops and recreates the bucket in one transaction, so keys removed
// from the document disappear and a failure rolls everything back.
func (b *BoltBackend) Save(doc Document) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(collectionsBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		bucket, err := tx.CreateBucket(collectionsBucket)
		if err != nil {
			return err
		}
		for name, v := range doc {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(name), raw); err != nil {
				return err
			}
		}
		return nil
	})
}
