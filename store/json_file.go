package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JsonFileBackend stores the whole document as one JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  db.json   # {"posts": [...], "forms": [...], "<key>": <value>}
//
// Saves go to a temporary file in the same directory which is then renamed
// over db.json, so readers of the file never see a partial write.
type JsonFileBackend struct {
	path string
}

func NewJsonFileBackend(path string) (*JsonFileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &JsonFileBackend{path: path}, nil
}

// Path returns the location of the document file.
func (b *JsonFileBackend) Path() string {
	return b.path
}

func (b *JsonFileBackend) Load() (Document, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return nil, err
	}
	return decodeDocument(data)
}

func (b *JsonFileBackend) Save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".db-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *JsonFileBackend) Close() error {
	return nil
}
