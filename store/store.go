// Package store persists named scripts and values across sessions,
// backed by a single SQLite file. Scripts are stored as source text;
// values are stored in the engine's wire encoding, so anything
// serializable can round-trip between runs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rove-lang/rove/vm"
)

// ErrNotFound indicates the requested entry does not exist.
var ErrNotFound = errors.New("not found in store")

// Store is a SQLite-backed library of scripts and snapshot values.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Entry describes one stored script or value.
type Entry struct {
	Name    string
	SavedAt time.Time
}

// DefaultPath returns the store location: $ROVE_STORE when set,
// otherwise ~/.rove/store.db.
func DefaultPath() (string, error) {
	if p := os.Getenv("ROVE_STORE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(home, ".rove", "store.db"), nil
}

// Open opens (creating if necessary) the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// Other rove processes may share the file.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS scripts (
			name     TEXT PRIMARY KEY,
			source   TEXT NOT NULL,
			saved_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			name     TEXT PRIMARY KEY,
			data     BLOB NOT NULL,
			saved_at TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveScript stores source under name, replacing any previous version.
func (s *Store) SaveScript(name, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO scripts (name, source, saved_at) VALUES (?, ?, ?)",
		name, source, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving script %q: %w", name, err)
	}
	return nil
}

// LoadScript returns the stored source for name.
func (s *Store) LoadScript(name string) (string, error) {
	var source string
	err := s.db.QueryRow("SELECT source FROM scripts WHERE name = ?", name).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("script %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying script %q: %w", name, err)
	}
	return source, nil
}

// DeleteScript removes a stored script.
func (s *Store) DeleteScript(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteFrom("scripts", name)
}

// ListScripts returns all stored scripts ordered by name.
func (s *Store) ListScripts() ([]Entry, error) {
	return s.list("scripts")
}

// SaveValue serializes v and stores it under name. Values holding
// function pointers or native objects are rejected by the codec.
func (s *Store) SaveValue(name string, v vm.Dynamic) error {
	data, err := vm.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO snapshots (name, data, saved_at) VALUES (?, ?, ?)",
		name, data, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving value %q: %w", name, err)
	}
	return nil
}

// LoadValue returns the stored value for name. The caller owns the
// returned value.
func (s *Store) LoadValue(name string) (vm.Dynamic, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM snapshots WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return vm.Unit(), fmt.Errorf("value %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return vm.Unit(), fmt.Errorf("querying value %q: %w", name, err)
	}
	return vm.Unmarshal(data)
}

// DeleteValue removes a stored value.
func (s *Store) DeleteValue(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteFrom("snapshots", name)
}

// ListValues returns all stored values ordered by name.
func (s *Store) ListValues() ([]Entry, error) {
	return s.list("snapshots")
}

func (s *Store) deleteFrom(table, name string) error {
	res, err := s.db.Exec("DELETE FROM "+table+" WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return nil
}

func (s *Store) list(table string) ([]Entry, error) {
	rows, err := s.db.Query("SELECT name, saved_at FROM " + table + " ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.Name, &at); err != nil {
			return nil, err
		}
		e.SavedAt, _ = time.Parse(time.RFC3339, at)
		out = append(out, e)
	}
	return out, rows.Err()
}
