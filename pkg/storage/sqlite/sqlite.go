// Package sqlite provides a SQLite-backed message store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xenophobed/isastream/pkg/chat"
	"github.com/xenophobed/isastream/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	seq        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, seq);
`

// Store implements storage.Store using SQLite via the
// github.com/mattn/go-sqlite3 driver.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite-backed store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite-specific pragmas
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put stores a message under a session. Returns true if the message was
// newly inserted, false if a message with the same ID already exists.
func (s *Store) Put(ctx context.Context, sessionID string, msg *chat.Message) (bool, error) {
	if msg == nil {
		return false, fmt.Errorf("cannot store nil message")
	}

	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, timestamp, metadata, seq)
		VALUES (?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?))
		ON CONFLICT (id) DO NOTHING`,
		msg.ID, sessionID, msg.Role, msg.Content, msg.Timestamp, string(meta), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return n > 0, nil
}

// Get retrieves a message by its ID.
func (s *Store) Get(ctx context.Context, id string) (*chat.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, role, content, timestamp, metadata FROM messages WHERE id = ?`, id)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}

	return msg, nil
}

// Has checks if a message exists by its ID.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query message: %w", err)
	}

	return exists, nil
}

// List returns all messages for a session in arrival order.
func (s *Store) List(ctx context.Context, sessionID string) ([]*chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, timestamp, metadata FROM messages
		 WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*chat.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// Sessions returns the distinct session IDs present in the store.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM messages GROUP BY session_id ORDER BY MIN(seq), session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, id)
	}

	return sessions, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*chat.Message, error) {
	var msg chat.Message
	var meta string

	if err := row.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp, &meta); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(meta), &msg.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return &msg, nil
}
