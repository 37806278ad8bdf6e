// Package audit records every accepted payload in a SQLite database.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dontdude/scanprint/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_at DATETIME NOT NULL,
	payload     TEXT NOT NULL,
	artifact    TEXT NOT NULL,
	source      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_records_captured_at ON scan_records(captured_at);
`

const (
	insertRecord = `INSERT INTO scan_records (captured_at, payload, artifact, source) VALUES (?, ?, ?, ?)`
	listRecent   = `SELECT captured_at, payload, artifact, source FROM scan_records ORDER BY id DESC LIMIT ?`
)

// Store is an append-only audit log.
type Store struct {
	db *sql.DB
}

var _ domain.AuditLog = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Append(ctx context.Context, rec domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, insertRecord, rec.CapturedAt.UTC(), rec.Payload, rec.Artifact, string(rec.Source))
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, listRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var (
			rec    domain.AuditRecord
			at     time.Time
			source string
		)
		if err := rows.Scan(&at, &rec.Payload, &rec.Artifact, &source); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.CapturedAt = at
		rec.Source = domain.Source(source)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
