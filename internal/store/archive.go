// Package store persists finished summaries so past digests can be reviewed
// without rerunning the pipeline.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SummaryRecord is one archived summary run.
type SummaryRecord struct {
	ID        int64
	GroupID   int64
	Selector  string
	Summary   string
	ImageRef  string
	Degraded  bool
	CreatedAt time.Time
}

// Archive stores summaries in SQLite.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewArchive(dbPath string, logger *slog.Logger) (*Archive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	a := &Archive{db: db, logger: logger}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS summaries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id    INTEGER NOT NULL,
		selector    TEXT NOT NULL,
		summary     TEXT NOT NULL,
		image_ref   TEXT,
		degraded    INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_summaries_group ON summaries(group_id, created_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// SaveSummary records one finished run. Satisfies summarizer.Archiver.
func (a *Archive) SaveSummary(ctx context.Context, groupID int64, selector, summary, imageRef string, degraded bool) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO summaries (group_id, selector, summary, image_ref, degraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		groupID, selector, summary, imageRef, degraded, time.Now(),
	)
	return err
}

// Recent returns the newest limit summaries for a group, newest first.
func (a *Archive) Recent(ctx context.Context, groupID int64, limit int) ([]SummaryRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, group_id, selector, summary, image_ref, degraded, created_at
		 FROM summaries WHERE group_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		groupID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SummaryRecord
	for rows.Next() {
		var rec SummaryRecord
		var imageRef sql.NullString
		if err := rows.Scan(&rec.ID, &rec.GroupID, &rec.Selector, &rec.Summary, &imageRef, &rec.Degraded, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.ImageRef = imageRef.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count reports how many summaries are archived for a group.
func (a *Archive) Count(ctx context.Context, groupID int64) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM summaries WHERE group_id = ?`, groupID,
	).Scan(&n)
	return n, err
}

func (a *Archive) Close() error { return a.db.Close() }
