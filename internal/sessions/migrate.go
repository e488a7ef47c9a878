package sessions

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements is the full SQLite schema, idempotent via IF NOT EXISTS
// so `agentd migrate` can be re-run safely.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		message_id TEXT    NOT NULL,
		role       TEXT    NOT NULL,
		content    TEXT    NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_session_seq
		ON messages (session_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at
		ON sessions (updated_at)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sessions: migrate: %w", err)
		}
	}
	return nil
}
