// Package store persists embedded text chunks in SQLite and answers
// nearest-neighbour queries through sqlite-vec.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register sqlite-vec as an auto-extension so every SQLite connection
	// opened by this process has the vec0 virtual table module available.
	vec.Auto()
}

var (
	// ErrDimensionMismatch is returned when a vector or an adapter does not
	// match the dimension the store was created with.
	ErrDimensionMismatch = errors.New("store: dimension mismatch")
	// ErrModelMismatch is returned when the store was built with another model.
	ErrModelMismatch = errors.New("store: model mismatch")
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("store: not found")
)

// Meta identifies the embedding space a store holds. It is written on first
// open and checked on every later open.
type Meta struct {
	Provider  string
	Model     string
	Dimension int
}

// Store wraps a *sql.DB holding files, chunks and their vectors.
type Store struct {
	conn *sql.DB
	meta Meta
}

// Open opens (or creates) the store at path for the given embedding space.
func Open(path string, meta Meta) (*Store, error) {
	if meta.Dimension <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrDimensionMismatch, meta.Dimension)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", absPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer, multiple readers.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.init(meta); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(meta Meta) error {
	if err := applyMigrations(s.conn); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	stored, ok, err := s.readMeta()
	if err != nil {
		return err
	}
	if !ok {
		if err := s.writeMeta(meta); err != nil {
			return err
		}
		stored = meta
	}
	if stored.Dimension != meta.Dimension {
		return fmt.Errorf("%w: store has %d, adapter has %d", ErrDimensionMismatch, stored.Dimension, meta.Dimension)
	}
	if meta.Model != "" && stored.Model != meta.Model {
		return fmt.Errorf("%w: store has %q, adapter has %q", ErrModelMismatch, stored.Model, meta.Model)
	}
	s.meta = stored

	if err := applyVectorTables(s.conn, stored.Dimension); err != nil {
		return fmt.Errorf("apply vector tables: %w", err)
	}
	return nil
}

func (s *Store) readMeta() (Meta, bool, error) {
	rows, err := s.conn.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, false, fmt.Errorf("store: read meta: %w", err)
	}
	defer rows.Close()

	var m Meta
	found := false
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, false, err
		}
		switch k {
		case "provider":
			m.Provider = v
		case "model":
			m.Model = v
		case "dimension":
			m.Dimension, _ = strconv.Atoi(v)
			found = true
		}
	}
	return m, found, rows.Err()
}

func (s *Store) writeMeta(m Meta) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: write meta: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range map[string]string{
		"provider":  m.Provider,
		"model":     m.Model,
		"dimension": strconv.Itoa(m.Dimension),
	} {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("store: write meta %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Meta returns the embedding space the store holds.
func (s *Store) Meta() Meta {
	return s.meta
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// ReadMeta returns the embedding space recorded in the store at path without
// pinning a new one. ok is false when the store does not exist yet.
func ReadMeta(path string) (meta Meta, ok bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return Meta{}, false, nil
	}
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return Meta{}, false, fmt.Errorf("open sqlite: %w", err)
	}
	defer conn.Close()

	s := &Store{conn: conn}
	return s.readMeta()
}
