// Package history persists a record of every generated file in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/book-expert/voice-clone-service/internal/core"
)

const (
	driverName     = "sqlite"
	dirPermissions = 0o750
	defaultLimit   = 100
)

// ErrNotFound is returned when a record does not exist or belongs to another user.
var ErrNotFound = errors.New("history record not found")

const schema = `
CREATE TABLE IF NOT EXISTS synthesis_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL,
	voice       TEXT    NOT NULL,
	language    TEXT    NOT NULL,
	text        TEXT    NOT NULL,
	filename    TEXT    NOT NULL,
	object_key  TEXT    NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_synthesis_history_user
	ON synthesis_history (user_id, created_at DESC);
`

// Record is one generated file.
type Record struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Voice      string    `json:"voice"`
	Language   string    `json:"language"`
	Text       string    `json:"text"`
	Filename   string    `json:"filename"`
	ObjectKey  string    `json:"object_key,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is a SQLite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	err := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores event and returns the new record id.
func (s *Store) Record(ctx context.Context, event core.AudioSynthesized) (int64, error) {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO synthesis_history
			(user_id, voice, language, text, filename, object_key, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.UserID, event.Voice, event.Language, event.Text, event.Filename,
		event.ObjectKey, event.DurationMS, createdAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert history record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read history record id: %w", err)
	}

	return id, nil
}

// List returns up to limit records of userID, newest first. A non-positive
// limit uses the default of 100.
func (s *Store) List(ctx context.Context, userID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, voice, language, text, filename, object_key, duration_ms, created_at
		FROM synthesis_history
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)

	for rows.Next() {
		var (
			record    Record
			createdAt int64
		)

		err = rows.Scan(&record.ID, &record.UserID, &record.Voice, &record.Language, &record.Text,
			&record.Filename, &record.ObjectKey, &record.DurationMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}

		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return records, nil
}

// Delete removes record id if it belongs to userID.
func (s *Store) Delete(ctx context.Context, id, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM synthesis_history WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete history record %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	return nil
}
