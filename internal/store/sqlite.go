package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS visitor_kv (
	visitor TEXT NOT NULL,
	key     TEXT NOT NULL,
	value   TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (visitor, key)
)`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, visitor, key string) (string, bool, error) {
	if visitor == "" {
		return "", false, ErrNoVisitor
	}
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM visitor_kv WHERE visitor = ? AND key = ?`, visitor, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, visitor, key, value string) error {
	if visitor == "" {
		return ErrNoVisitor
	}
	return upsert(ctx, s.db, visitor, key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, visitor, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO visitor_kv (visitor, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(visitor, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		visitor, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, visitor, key string) error {
	if visitor == "" {
		return ErrNoVisitor
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM visitor_kv WHERE visitor = ? AND key = ?`, visitor, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, visitor, key string, fn func(string, bool) (string, error)) error {
	if visitor == "" {
		return ErrNoVisitor
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var old string
	ok := true
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM visitor_kv WHERE visitor = ? AND key = ?`, visitor, key).Scan(&old)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		ok = false
	case err != nil:
		return fmt.Errorf("get %s: %w", key, err)
	}
	v, err := fn(old, ok)
	if err != nil {
		return err
	}
	if err := upsert(ctx, tx, visitor, key, v); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Close() error { return s.db.Close() }
