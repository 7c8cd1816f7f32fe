package store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"zephuris/divarworker/internal/ad"
)

const sqliteHeader = "SQLite format 3\x00"

// Store is the persisted collection of ads
type Store interface {
	// Load returns every stored record in insertion order
	Load(ctx context.Context) ([]ad.Record, error)

	// Append persists one record
	Append(ctx context.Context, rec ad.Record) error

	// Close releases the underlying file or database
	Close() error
}

// IsSQLitePath reports whether path names a SQLite database by its extension
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Open opens the store for path. useSQLite selects the SQLite backend,
// otherwise records are kept as JSON lines.
func Open(path string, useSQLite bool, runID string) (Store, error) {
	if useSQLite {
		return NewSQLiteStore(path, runID)
	}
	return NewJSONLStore(path), nil
}

// LoadExisting reads a previously saved collection. SQLite is used when
// useSQLite is set, when the file starts with the SQLite header or when the
// extension names a database; anything else is read as JSON lines. A
// missing file yields an empty collection.
func LoadExisting(ctx context.Context, path string, useSQLite bool) ([]ad.Record, error) {
	if useSQLite || IsSQLitePath(path) || hasSQLiteHeader(path) {
		s, err := NewSQLiteStore(path, "")
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Load(ctx)
	}

	return NewJSONLStore(path).Load(ctx)
}

func hasSQLiteHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return string(header) == sqliteHeader
}
