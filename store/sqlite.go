package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go SQLite driver, registered as "sqlite"
)

// SQLite driver names accepted by NewSqliteBackend.
const (
	DriverCgo    = "sqlite3"
	DriverPureGo = "sqlite"
)

// SqliteBackend stores each top-level key of the document as one row.
//
// Tables:
//
//	collections(name, value)  PRIMARY KEY (name)
type SqliteBackend struct {
	db *sql.DB
}

func NewSqliteBackend(driver, dbPath string) (*SqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases and WAL writes coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteBackend{db: db}, nil
}

func (s *SqliteBackend) Close() error {
	return s.db.Close()
}

func (s *SqliteBackend) Load() (Document, error) {
	rows, err := s.db.Query("SELECT name, value FROM collections")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	doc := Document{}
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		v, err := decodeValue([]byte(raw))
		if err != nil {
			return nil, err
		}
		doc[name] = v
	}
	return doc, rows.Err()
}

func (s *SqliteBackend) Save(doc Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM collections"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO collections (name, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for name, v := range doc {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(name, string(b)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
