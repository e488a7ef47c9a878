package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/pkg/models"
)

// DefaultTTL drops idle sessions after this long without any access.
const DefaultTTL = 30 * time.Minute

// Manager is the live session layer: one exclusive lock per session, cheap
// snapshots, idempotent cancellation, and FIFO queueing. Every history
// mutation is mirrored to the optional Store so history survives a restart;
// the queue and the generation slot live only in memory. A cold session is
// rehydrated lazily on first access.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managedSession

	store  Store
	ttl    time.Duration
	logger *observability.Logger
	now    func() time.Time
}

// managedSession pairs a session with its lock and TTL timer.
type managedSession struct {
	mu      sync.Mutex
	session *models.Session
	seq     int
	timer   *time.Timer
}

// NewManager builds a Manager. store may be nil (memory-only); ttl <= 0
// selects DefaultTTL.
func NewManager(store Store, ttl time.Duration, logger *observability.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Manager{
		sessions: make(map[string]*managedSession),
		store:    store,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrCreate returns the session with the given ID, creating it (or
// rehydrating it from the store) if needed. An empty ID allocates a new
// session. Every call resets the session's TTL timer.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*models.Session, error) {
	entry, err := m.entry(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return m.snapshotLocked(entry), nil
}

// Append adds one message to the session's history and persists it.
func (m *Manager) Append(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	entry, err := m.entry(ctx, sessionID, false)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.session.Messages = append(entry.session.Messages, msg)
	entry.session.UpdatedAt = m.now().UnixMilli()
	entry.seq++

	if m.store != nil {
		if err := m.store.AppendMessage(ctx, sessionID, entry.seq, msg); err != nil {
			m.logger.Warn(ctx, "persist append failed", "session_id", sessionID, "error", err)
		}
		m.touchStore(ctx, sessionID)
	}
	return nil
}

// Replace swaps the session's whole message list, which is how compaction
// commits its result atomically under the session lock.
func (m *Manager) Replace(ctx context.Context, sessionID string, msgs []models.ChatMessage) error {
	entry, err := m.entry(ctx, sessionID, false)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.session.Messages = append([]models.ChatMessage{}, msgs...)
	entry.session.UpdatedAt = m.now().UnixMilli()
	entry.seq = len(msgs)

	if m.store != nil {
		if err := m.store.ReplaceMessages(ctx, sessionID, msgs); err != nil {
			m.logger.Warn(ctx, "persist replace failed", "session_id", sessionID, "error", err)
		}
		m.touchStore(ctx, sessionID)
	}
	return nil
}

// Snapshot returns a shallow copy of the session's current message list.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	entry, err := m.entry(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return append([]models.ChatMessage{}, entry.session.Messages...), nil
}

// BeginGeneration claims the session's single generation slot and returns
// the new cancellation handle. ErrGenerationActive if one is running.
func (m *Manager) BeginGeneration(ctx context.Context, sessionID string) (*models.Cancellation, error) {
	entry, err := m.entry(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session.HasActiveGeneration() {
		return nil, ErrGenerationActive
	}
	cancellation := models.NewCancellation(context.Background())
	entry.session.ActiveCancellation = cancellation
	return cancellation, nil
}

// EndGeneration releases the generation slot if handle still owns it.
func (m *Manager) EndGeneration(sessionID string, handle *models.Cancellation) {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.ActiveCancellation == handle {
		entry.session.ActiveCancellation = nil
	}
}

// Cancel trips the session's active cancellation handle. Idempotent; a
// session with no active generation is a no-op.
func (m *Manager) Cancel(sessionID string) {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	handle := entry.session.ActiveCancellation
	entry.mu.Unlock()
	handle.Trip()
}

// Busy reports whether a generation is active for the session.
func (m *Manager) Busy(sessionID string) bool {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.HasActiveGeneration()
}

// Enqueue appends a draft to the session's FIFO queue and returns the new
// queue depth.
func (m *Manager) Enqueue(ctx context.Context, sessionID string, draft models.QueuedMessage) (int, error) {
	entry, err := m.entry(ctx, sessionID, false)
	if err != nil {
		return 0, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if draft.EnqueuedAt == 0 {
		draft.EnqueuedAt = m.now().UnixMilli()
	}
	entry.session.Queue = append(entry.session.Queue, draft)
	return len(entry.session.Queue), nil
}

// FlushNext pops the head of the queue, or nil when empty. Called by the
// gateway exactly once per completed generation.
func (m *Manager) FlushNext(ctx context.Context, sessionID string) (*models.QueuedMessage, error) {
	entry, err := m.entry(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if len(entry.session.Queue) == 0 {
		return nil, nil
	}
	head := entry.session.Queue[0]
	entry.session.Queue = entry.session.Queue[1:]
	return &head, nil
}

// Reset cancels any active generation and clears messages and queue.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	m.Cancel(sessionID)

	entry, err := m.entry(ctx, sessionID, false)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.session.Messages = nil
	entry.session.Queue = nil
	entry.session.UpdatedAt = m.now().UnixMilli()
	entry.seq = 0

	if m.store != nil {
		if err := m.store.ReplaceMessages(ctx, sessionID, nil); err != nil {
			m.logger.Warn(ctx, "persist reset failed", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

// entry returns the managed session, rehydrating or creating as allowed.
func (m *Manager) entry(ctx context.Context, sessionID string, create bool) (*managedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if entry, ok := m.sessions[sessionID]; ok {
			m.resetTimerLocked(sessionID, entry)
			return entry, nil
		}
	}

	// Cold path: try the durable store before declaring the session
	// unknown.
	if sessionID != "" && m.store != nil {
		msgs, err := m.store.LoadMessages(ctx, sessionID)
		if err == nil {
			entry := &managedSession{
				session: &models.Session{
					ID:        sessionID,
					Messages:  msgs,
					UpdatedAt: m.now().UnixMilli(),
				},
				seq: len(msgs),
			}
			m.sessions[sessionID] = entry
			m.resetTimerLocked(sessionID, entry)
			return entry, nil
		}
	}

	if !create {
		return nil, ErrSessionNotFound
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	entry := &managedSession{
		session: &models.Session{
			ID:        sessionID,
			UpdatedAt: m.now().UnixMilli(),
		},
	}
	m.sessions[sessionID] = entry
	m.resetTimerLocked(sessionID, entry)
	m.touchStore(ctx, sessionID)
	return entry, nil
}

// resetTimerLocked restarts the session's TTL timer; expiry drops the
// session from memory (the cron sweep handles the durable rows).
func (m *Manager) resetTimerLocked(sessionID string, entry *managedSession) {
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.timer = time.AfterFunc(m.ttl, func() {
		m.expire(sessionID)
	})
}

func (m *Manager) expire(sessionID string) {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	if ok {
		// Never drop a session mid-generation; the timer will be reset by
		// the generation's own accesses anyway.
		entry.mu.Lock()
		active := entry.session.HasActiveGeneration()
		entry.mu.Unlock()
		if active {
			m.mu.Unlock()
			return
		}
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Info(context.Background(), "session expired", "session_id", sessionID)
	}
}

func (m *Manager) snapshotLocked(entry *managedSession) *models.Session {
	clone := *entry.session
	clone.Messages = append([]models.ChatMessage{}, entry.session.Messages...)
	clone.Queue = append([]models.QueuedMessage{}, entry.session.Queue...)
	return &clone
}

func (m *Manager) touchStore(ctx context.Context, sessionID string) {
	if m.store == nil {
		return
	}
	if err := m.store.TouchSession(ctx, sessionID, m.now()); err != nil {
		m.logger.Warn(ctx, "persist touch failed", "session_id", sessionID, "error", err)
	}
}

// TTL exposes the configured time-to-live (the expiry sweep uses it).
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
