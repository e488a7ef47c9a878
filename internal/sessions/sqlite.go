package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentrt/agentrt/pkg/models"
)

// SQLiteStore implements Store on a SQLite database through the pure-Go
// driver. One writer at a time is enough here: the manager serializes
// writes per session, and cross-session write volume is low.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and pings) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sessions: sqlite dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessions: open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStoreFromDB wraps an existing handle; tests inject sqlmock
// through this.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// DB exposes the underlying handle for migration.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) TouchSession(ctx context.Context, id string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, updated_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		id, updatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sessions: touch session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, seq int, msg models.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, message_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, seq, msg.ID, string(msg.Role), msg.Content, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sessions: append message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceMessages(ctx context.Context, sessionID string, msgs []models.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sessions: begin replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("sessions: clear messages: %w", err)
	}
	for i, msg := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, seq, message_id, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, i+1, msg.ID, string(msg.Role), msg.Content, msg.Timestamp,
		); err != nil {
			return fmt.Errorf("sessions: insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sessions: commit replace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("sessions: lookup session: %w", err)
	}
	if exists == 0 {
		return nil, ErrSessionNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, role, content, created_at FROM messages
		 WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sessions: load messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("sessions: scan message: %w", err)
		}
		msg.Role = models.Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessions: iterate messages: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sessions: begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("sessions: delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sessions: delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sessions: commit delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sessions: begin sweep: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN
		   (SELECT id FROM sessions WHERE updated_at < ?)`,
		cutoff.UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("sessions: sweep messages: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_at < ?`, cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("sessions: sweep sessions: %w", err)
	}
	dropped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sessions: sweep count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sessions: commit sweep: %w", err)
	}
	return dropped, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
