package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	pk         TEXT    NOT NULL,
	sk         TEXT    NOT NULL,
	version    INTEGER NOT NULL,
	data       BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (pk, sk)
);`

var _ Store = (*SQLite)(nil)

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db     *sql.DB
	closed atomic.Bool
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. ":memory:" is accepted for throwaway stores.
func OpenSQLite(path string) (*SQLite, error) {
	inMemory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")
	if !inMemory {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// SQLite has a single writer; each :memory: connection is also its own
	// database, so one pooled connection covers both.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
	}
	if !inMemory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Get implements Store. A missing record returns nil, nil.
func (s *SQLite) Get(ctx context.Context, pk, sk string) (*Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var (
		rec     = Record{PK: pk, SK: sk}
		data    []byte
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, data, updated_at FROM records WHERE pk = ? AND sk = ?`, pk, sk,
	).Scan(&rec.Version, &data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", pk, sk, err)
	}
	rec.Data = data
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}

// Put implements Store. It writes unconditionally and bumps the version.
func (s *SQLite) Put(ctx context.Context, rec Record) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (pk, sk, version, data, updated_at) VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (pk, sk) DO UPDATE SET
			version = records.version + 1,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		rec.PK, rec.SK, []byte(rec.Data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", rec.PK, rec.SK, err)
	}
	return nil
}

// PutIfVersion implements Store. expected 0 means the record must not exist.
func (s *SQLite) PutIfVersion(ctx context.Context, rec Record, expected int64) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	now := time.Now().UnixNano()

	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO records (pk, sk, version, data, updated_at) VALUES (?, ?, 1, ?, ?)
			ON CONFLICT (pk, sk) DO NOTHING`,
			rec.PK, rec.SK, []byte(rec.Data), now)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE records SET version = version + 1, data = ?, updated_at = ?
			WHERE pk = ? AND sk = ? AND version = ?`,
			[]byte(rec.Data), now, rec.PK, rec.SK, expected)
	}
	if err != nil {
		return false, fmt.Errorf("failed to write %s/%s: %w", rec.PK, rec.SK, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check write %s/%s: %w", rec.PK, rec.SK, err)
	}
	return n == 1, nil
}

// Close implements Store. Operations after Close return ErrClosed.
func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
