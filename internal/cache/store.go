// Package cache persists finished summaries in SQLite so an interrupted or
// repeated run does not pay for the same provider calls twice.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felipepimentel/aibook/internal/book"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache: empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	// Workers share the store; one connection serializes writers.
	db.SetMaxOpenConns(1)
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("cache: pragma: %w", err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS summaries (
	scope TEXT NOT NULL,
	unit INTEGER NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(scope, unit)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("cache: migrate: %w", err)
	}
	return nil
}

// Get returns the summary stored for (scope, unit). The bool is false when
// nothing is stored.
func (s *Store) Get(ctx context.Context, scope string, unit int) (book.Summary, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM summaries WHERE scope = ? AND unit = ?`, scope, unit).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return book.Summary{}, false, nil
	}
	if err != nil {
		return book.Summary{}, false, fmt.Errorf("cache: get %d: %w", unit, err)
	}
	var sum book.Summary
	if err := json.Unmarshal([]byte(body), &sum); err != nil {
		return book.Summary{}, false, fmt.Errorf("cache: decode %d: %w", unit, err)
	}
	return sum, true, nil
}

func (s *Store) Put(ctx context.Context, scope string, unit int, sum book.Summary) error {
	body, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("cache: encode %d: %w", unit, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO summaries (scope, unit, body)
VALUES (?, ?, ?)
ON CONFLICT(scope, unit) DO UPDATE SET body = excluded.body
`, scope, unit, string(body))
	if err != nil {
		return fmt.Errorf("cache: put %d: %w", unit, err)
	}
	return nil
}

// Scope derives the cache scope of a job: the book content plus every
// setting that changes what the provider is asked.
func Scope(b *book.Book, settings ...string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", b.Title, len(b.Chapters))
	for _, ch := range b.Chapters {
		fmt.Fprintf(h, "%s\x00%s\x00", ch.Title, ch.Text)
	}
	for _, s := range settings {
		fmt.Fprintf(h, "%s\x00", s)
	}
	return hex.EncodeToString(h.Sum(nil))
}
