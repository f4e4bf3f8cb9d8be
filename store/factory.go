package store

import (
	"fmt"
	"path/filepath"
)

// NewBackend creates a Backend based on the backend name.
//
// Supported backends:
//
//	"json"          - single JSON file at dataDir/db.json (default)
//	"sqlite"        - SQLite (cgo driver) at dataDir/db.sqlite
//	"sqlite-purego" - SQLite (pure Go driver) at dataDir/db.sqlite
//	"bolt"          - BoltDB at dataDir/db.bolt
//	"buntdb"        - BuntDB at dataDir/db.bunt
//	"memory"        - in-memory BuntDB (ephemeral, for testing)
func NewBackend(backend, dataDir string) (Backend, error) {
	switch backend {
	case "json", "":
		return NewJsonFileBackend(filepath.Join(dataDir, "db.json"))
	case "sqlite":
		return NewSqliteBackend(DriverCgo, filepath.Join(dataDir, "db.sqlite"))
	case "sqlite-purego":
		return NewSqliteBackend(DriverPureGo, filepath.Join(dataDir, "db.sqlite"))
	case "bolt":
		return NewBoltBackend(filepath.Join(dataDir, "db.bolt"))
	case "buntdb":
		return NewBuntBackend(filepath.Join(dataDir, "db.bunt"))
	case "memory":
		return NewBuntBackend(":memory:")
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, sqlite-purego, bolt, buntdb, memory)", backend)
	}
}
