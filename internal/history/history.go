// Package history keeps the append-only audit log of administrative
// mutations. It records what changed, never affects correctness of the relay
// itself, and is read back only for display in the admin menu.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nvoronov/chanrelay/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	action       TEXT NOT NULL,
	category     TEXT NOT NULL,
	items        TEXT NOT NULL DEFAULT '[]',
	before_value TEXT NOT NULL DEFAULT '',
	after_value  TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
)`

// Log is the SQLite-backed audit log. Writes are serialized with the same
// discipline as settings mutations.
type Log struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the history database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Append records one mutation. The entry timestamp is assigned here unless
// the caller set one.
func (l *Log) Append(ctx context.Context, e models.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO history (action, category, items, before_value, after_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Action, e.Category, models.EncodeItems(e.Items), e.Before, e.After,
		e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, action, category, items, before_value, after_value, created_at
		 FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var items, createdAt string
		if err := rows.Scan(&e.ID, &e.Action, &e.Category, &items, &e.Before, &e.After, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Items = models.DecodeItems(items)
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
