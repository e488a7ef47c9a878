// Package sessions owns per-client conversational state: message history,
// the single-active-generation invariant, the FIFO draft queue, TTL expiry,
// and durable persistence behind the in-memory layer.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/agentrt/agentrt/pkg/models"
)

// ErrSessionNotFound is returned for operations on unknown sessions.
var ErrSessionNotFound = errors.New("sessions: session not found")

// ErrGenerationActive is returned by BeginGeneration when one is already
// running for the session.
var ErrGenerationActive = errors.New("sessions: generation already active")

// Store is the durability layer behind the in-memory manager. The manager
// is the source of truth for live concurrency control; the store is the
// source of truth across process restarts.
type Store interface {
	// TouchSession creates or updates the session row's updated_at.
	TouchSession(ctx context.Context, id string, updatedAt time.Time) error

	// AppendMessage persists one message at the next sequence number.
	AppendMessage(ctx context.Context, sessionID string, seq int, msg models.ChatMessage) error

	// ReplaceMessages atomically replaces the session's whole message list
	// (compaction commits through this).
	ReplaceMessages(ctx context.Context, sessionID string, msgs []models.ChatMessage) error

	// LoadMessages returns the session's messages in sequence order, or
	// ErrSessionNotFound for an unknown session.
	LoadMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpired removes sessions not touched since cutoff, returning
	// how many were dropped.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the underlying resources.
	Close() error
}
