// Package history persists a small, bounded log of past enrichment
// interactions across process restarts.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// DefaultLimit is the number of entries retained when no limit is configured.
const DefaultLimit = 5

// Entry is one recorded interaction. Text is stored pre-truncated by the
// caller; the store does not reinterpret it.
type Entry struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Text      string    `json:"text"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"timestamp"`
}

// Store wraps the SQLite connection holding the interaction log.
type Store struct {
	conn  *sql.DB
	limit int
}

// Option configures a Store.
type Option func(*Store)

// WithLimit sets the maximum number of retained entries.
func WithLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// Open creates the database file if needed and initializes the schema.
func Open(path string, opts ...Option) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{conn: conn, limit: DefaultLimit}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		text TEXT NOT NULL,
		result TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_created_at ON interactions(created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Append records an entry and drops the oldest rows beyond the retention
// limit in the same transaction. A zero ID or timestamp is filled in.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (id, mode, text, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Mode, e.Text, e.Result, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM interactions WHERE id NOT IN (
			SELECT id FROM interactions ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, s.limit,
	)
	if err != nil {
		return fmt.Errorf("prune entries: %w", err)
	}

	return tx.Commit()
}

// Recent returns all retained entries, newest first.
func (s *Store) Recent(ctx context.Context) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, mode, text, result, created_at
		 FROM interactions ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Mode, &e.Text, &e.Result, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns a single entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, mode, text, result, created_at FROM interactions WHERE id = ?`, id,
	).Scan(&e.ID, &e.Mode, &e.Text, &e.Result, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Len reports the number of retained entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&n)
	return n, err
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM interactions`)
	return err
}
