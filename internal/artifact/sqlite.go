// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a Store backed by a SQLite database, so issued downloads
// survive a restart and can still be swept afterwards.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the ledger database at dbPath and creates
// the schema if it does not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			label TEXT NOT NULL,
			filename TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_expires_at ON artifacts(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, a Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, path, label, filename, size, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Path, a.Label, a.Filename, a.Size,
		formatTime(a.CreatedAt), formatTime(a.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("recording artifact %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string, now time.Time) (Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, label, filename, size, created_at, expires_at
		 FROM artifacts WHERE id = ? AND expires_at > ?`,
		id, formatTime(now),
	)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, ErrNotFound
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("loading artifact %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteStore) Expired(ctx context.Context, now time.Time) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, label, filename, size, created_at, expires_at
		 FROM artifacts WHERE expires_at <= ? ORDER BY expires_at`,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("querying expired artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting artifact %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(sc scanner) (Artifact, error) {
	var a Artifact
	var created, expires string
	if err := sc.Scan(&a.ID, &a.Path, &a.Label, &a.Filename, &a.Size, &created, &expires); err != nil {
		return Artifact{}, err
	}
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return Artifact{}, err
	}
	if a.ExpiresAt, err = parseTime(expires); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// timeLayout sorts lexically in chronological order, which the expiry
// queries rely on. Fixed-width nanoseconds keep that true within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}
