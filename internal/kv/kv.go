// SPDX-License-Identifier: Apache-2.0

// Package kv provides the small persistent key/value store the sync core
// uses for per-store preferences (known descriptor versions) and for the
// DOWNLOAD:/UPLOAD: markers that let interrupted transfers resume after a
// restart. Backed by a single-table SQLite database.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MKhiriev/kegsync/internal/logger"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv key not found")

const (
	createTable = `CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	upsertValue = `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	selectValue  = `SELECT value FROM kv WHERE key = ?`
	deleteValue  = `DELETE FROM kv WHERE key = ?`
	selectPrefix = `SELECT key, value FROM kv WHERE key LIKE ? || '%' ORDER BY key`
)

// Store is a SQLite-backed key/value store. Safe for concurrent use; the
// underlying *sql.DB serialises access.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the kv table exists.
func Open(ctx context.Context, path string, log *logger.Logger) (*Store, error) {
	if err := createFileIfNotExists(path); err != nil {
		log.Err(err).Str("func", "kv.Open").Msg("error creating database file")
		return nil, fmt.Errorf("create kv database file: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open kv database: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping kv database: %w", err)
	}

	if _, err = conn.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &Store{db: conn, logger: log}, nil
}

func createFileIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		return f.Close()
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, selectValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get kv %q: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertValue, key, value); err != nil {
		return fmt.Errorf("put kv %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteValue, key); err != nil {
		return fmt.Errorf("delete kv %q: %w", key, err)
	}
	return nil
}

// ListPrefix returns every key/value pair whose key starts with prefix,
// ordered by key.
func (s *Store) ListPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, selectPrefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list kv prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err = rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan kv row: %w", err)
		}
		out[k] = v
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kv rows: %w", err)
	}

	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
