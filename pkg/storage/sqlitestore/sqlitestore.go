// Package sqlitestore is a SQLite-backed storage adapter: one row per key in
// a kv table. It satisfies the Storage contract only; SQLite has no change
// notification stream, so cross-process sync needs a watchable medium.
package sqlitestore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store satisfies atoms.Storage over a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the kv table
// exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) GetItem(key string) (string, bool) {
	var value string
	// The contract has no error channel on reads; any failure reads as absent.
	if err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value); err != nil {
		return "", false
	}
	return value, true
}

func (s *Store) SetItem(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("sqlitestore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) RemoveItem(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlitestore: remove %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
