package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"playhead/internal/config"
	"playhead/internal/queue"
)

const schema = `
CREATE TABLE IF NOT EXISTS playback_progress (
    item_id          TEXT PRIMARY KEY,
    position_seconds REAL NOT NULL,
    duration_seconds REAL NOT NULL,
    updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS play_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id    TEXT NOT NULL,
    title      TEXT NOT NULL,
    collection TEXT NOT NULL,
    started_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_play_history_started_at
    ON play_history(started_at DESC);
`

// Store manages local playback state persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// PlayRecord is one entry in the play history log.
type PlayRecord struct {
	ItemID     string
	Title      string
	Collection string
	StartedAt  time.Time
}

// Open initializes or connects to the session database in the configured
// state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.StateDir, "session.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// SavePosition upserts the saved position for an item.
func (s *Store) SavePosition(ctx context.Context, itemID string, position, duration float64) error {
	if itemID == "" {
		return errors.New("item id required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO playback_progress (item_id, position_seconds, duration_seconds, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(item_id) DO UPDATE SET
            position_seconds = excluded.position_seconds,
            duration_seconds = excluded.duration_seconds,
            updated_at       = excluded.updated_at`,
		itemID, position, duration, now,
	)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// Position returns the saved position for an item. ok is false when the
// item has never been played.
func (s *Store) Position(ctx context.Context, itemID string) (position float64, ok bool, err error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT position_seconds FROM playback_progress WHERE item_id = ?`,
		itemID,
	)
	if err := row.Scan(&position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load position: %w", err)
	}
	return position, true, nil
}

// RecordPlay appends a play history entry for an item.
func (s *Store) RecordPlay(ctx context.Context, item queue.Item) error {
	if item.ID == "" {
		return errors.New("item id required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO play_history (item_id, title, collection, started_at) VALUES (?, ?, ?, ?)`,
		item.ID, item.Title, item.Collection, now,
	)
	if err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}

// Recent returns the most recent play history entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]PlayRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT item_id, title, collection, started_at
         FROM play_history ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query play history: %w", err)
	}
	defer rows.Close()

	var records []PlayRecord
	for rows.Next() {
		var record PlayRecord
		var startedAt string
		if err := rows.Scan(&record.ItemID, &record.Title, &record.Collection, &startedAt); err != nil {
			return nil, fmt.Errorf("scan play history: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, startedAt); parseErr == nil {
			record.StartedAt = parsed
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate play history: %w", err)
	}
	return records, nil
}
