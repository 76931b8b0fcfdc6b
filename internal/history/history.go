// Package history journals finished import batches in a SQLite database so
// past outcomes can be reviewed. The import engine itself persists nothing;
// callers record batches here after the fact.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tormodhaugland/intake/internal/model"
)

// ErrNotFound is returned by GetBatch for an unknown batch ID.
var ErrNotFound = errors.New("batch not found")

// DB wraps the journal database.
type DB struct {
	conn *sql.DB
	path string
}

// Summary is a batch without its outcomes.
type Summary struct {
	ID         string    `json:"id"`
	TargetDir  string    `json:"target_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Bytes      int64     `json:"bytes"`
}

// Open opens or creates the journal at dbPath.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1},
		{2, migrationV2},
	}

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := db.conn.Exec(m.sql); err != nil {
				return fmt.Errorf("migration v%d: %w", m.version, err)
			}
			if _, err := db.conn.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
				return fmt.Errorf("recording migration v%d: %w", m.version, err)
			}
		}
	}

	return nil
}

const migrationV1 = `
CREATE TABLE batches (
	id TEXT PRIMARY KEY,
	target_dir TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	total INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	bytes INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_batches_started ON batches(started_at);

CREATE TABLE outcomes (
	batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	source_path TEXT NOT NULL,
	dest_path TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	files INTEGER NOT NULL DEFAULT 0,
	dirs INTEGER NOT NULL DEFAULT 0,
	bytes INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (batch_id, position)
);
`

const migrationV2 = `
ALTER TABLE outcomes ADD COLUMN links INTEGER NOT NULL DEFAULT 0;
`

// NewBatchID returns a fresh batch identifier.
func NewBatchID() string {
	return uuid.NewString()
}

// RecordBatch stores a batch and its outcomes in one transaction. An empty ID
// is filled in. The stored ID is returned.
func (db *DB) RecordBatch(ctx context.Context, batch model.BatchRecord) (string, error) {
	if batch.ID == "" {
		batch.ID = NewBatchID()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (id, target_dir, started_at, finished_at, total, succeeded, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, batch.ID, batch.TargetDir, batch.StartedAt.UnixNano(), batch.FinishedAt.UnixNano(),
		len(batch.Outcomes), batch.Succeeded(), batch.TotalBytes())
	if err != nil {
		return "", fmt.Errorf("insert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (batch_id, position, source_path, dest_path, success, reason, detail, files, links, dirs, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range batch.Outcomes {
		_, err := stmt.ExecContext(ctx, batch.ID, i, o.SourcePath, o.DestPath, o.Success,
			string(o.Reason), o.Detail, o.Files, o.Links, o.Dirs, o.Bytes)
		if err != nil {
			return "", fmt.Errorf("insert outcome %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return batch.ID, nil
}

// ListBatches returns the most recent batches first. limit <= 0 means all.
func (db *DB) ListBatches(ctx context.Context, limit int) ([]Summary, error) {
	query := `
		SELECT id, target_dir, started_at, finished_at, total, succeeded, bytes
		FROM batches
		ORDER BY started_at DESC, id
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		var started, finished int64
		if err := rows.Scan(&s.ID, &s.TargetDir, &started, &finished, &s.Total, &s.Succeeded, &s.Bytes); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		s.FinishedAt = time.Unix(0, finished)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetBatch loads one batch with its outcomes in original order.
func (db *DB) GetBatch(ctx context.Context, id string) (*model.BatchRecord, error) {
	var batch model.BatchRecord
	var started, finished int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, target_dir, started_at, finished_at FROM batches WHERE id = ?", id,
	).Scan(&batch.ID, &batch.TargetDir, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	batch.StartedAt = time.Unix(0, started)
	batch.FinishedAt = time.Unix(0, finished)

	rows, err := db.conn.QueryContext(ctx, `
		SELECT source_path, dest_path, success, reason, detail, files, links, dirs, bytes
		FROM outcomes
		WHERE batch_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	batch.Outcomes = []model.ImportOutcome{}
	for rows.Next() {
		var o model.ImportOutcome
		var reason string
		if err := rows.Scan(&o.SourcePath, &o.DestPath, &o.Success, &reason, &o.Detail, &o.Files, &o.Links, &o.Dirs, &o.Bytes); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Reason = model.Reason(reason)
		batch.Outcomes = append(batch.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &batch, nil
}
