// Package journal keeps a local record of settled card actions.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"ticketwatch/internal/model"
	"ticketwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// DefaultLimit bounds List when no positive limit is given.
const DefaultLimit = 20

// SQLite stores journal entries in a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Record inserts e and populates its ID and CreatedAt.
func (s *SQLite) Record(ctx context.Context, e *model.JournalEntry) error {
	now := s.now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (chat_id, action, url_canon, level, message, task_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ChatID, string(e.Action), e.URLCanon, e.Level, e.Message, e.TaskID, now,
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// List returns the most recent entries for chatID, newest first. An empty
// chatID lists entries recorded without a session.
func (s *SQLite) List(ctx context.Context, chatID string, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, action, url_canon, level, message, task_id, created_at
		 FROM actions WHERE chat_id = ? ORDER BY id DESC LIMIT ?`, chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var action, created string
		if err := rows.Scan(&e.ID, &e.ChatID, &action, &e.URLCanon, &e.Level, &e.Message, &e.TaskID, &created); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		e.Action = model.ActionKind(action)
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastTask returns the most recent task identifier journaled for a canonical
// listing URL, or "" when none was recorded.
func (s *SQLite) LastTask(ctx context.Context, chatID, urlCanon string) (string, error) {
	var taskID string
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id FROM actions
		 WHERE chat_id = ? AND url_canon = ? AND task_id != ''
		 ORDER BY id DESC LIMIT 1`, chatID, urlCanon,
	).Scan(&taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query last task: %w", err)
	}
	return taskID, nil
}
