package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/agentrt/agentrt/pkg/models"
)

func testMessage(id, content string, role models.Role) models.ChatMessage {
	return models.ChatMessage{ID: id, Role: role, Content: content, Timestamp: time.Now().UnixMilli()}
}

func TestGetOrCreateAllocatesAndReturns(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	ctx := context.Background()

	created, err := m.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("new session should get an ID")
	}

	again, err := m.GetOrCreate(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetOrCreate(existing) error: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("IDs differ: %q vs %q", again.ID, created.ID)
	}
}

func TestAppendAndSnapshot(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	ctx := context.Background()

	session, _ := m.GetOrCreate(ctx, "")
	if err := m.Append(ctx, session.ID, testMessage("1", "hi", models.RoleUser)); err != nil {
		t.Fatal(err)
	}
	if err := m.Append(ctx, session.ID, testMessage("2", "hello", models.RoleAssistant)); err != nil {
		t.Fatal(err)
	}

	snap, err := m.Snapshot(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 2 || snap[0].ID != "1" || snap[1].ID != "2" {
		t.Errorf("snapshot = %+v", snap)
	}

	// Mutating the snapshot must not touch the session.
	snap[0].Content = "mutated"
	fresh, _ := m.Snapshot(ctx, session.ID)
	if fresh[0].Content != "hi" {
		t.Error("snapshot mutation leaked into session state")
	}
}

func TestAppendUnknownSession(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	err := m.Append(context.Background(), "ghost", testMessage("1", "x", models.RoleUser))
	if err == nil {
		t.Fatal("Append to unknown session should fail")
	}
}

func TestReplaceSwapsHistory(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	ctx := context.Background()

	session, _ := m.GetOrCreate(ctx, "")
	_ = m.Append(ctx, session.ID, testMessage("1", "a", models.RoleUser))
	_ = m.Append(ctx, session.ID, testMessage("2", "b", models.RoleAssistant))

	replacement := []models.ChatMessage{testMessage("s", "[Conversation Summary]\nstuff", models.RoleSystem)}
	if err := m.Replace(ctx, session.ID, replacement); err != nil {
		t.Fatal(err)
	}

	snap, _ := m.Snapshot(ctx, session.ID)
	if len(snap) != 1 || snap[0].ID != "s" {
		t.Errorf("snapshot after replace = %+v", snap)
	}
}

func TestSingleActiveGeneration(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	ctx := context.Background()
	session, _ := m.GetOrCreate(ctx, "")

	first, err := m.BeginGeneration(ctx, session.ID)
	if err != nil {
		t.Fatalf("BeginGeneration() error: %v", err)
	}
	if !m.Busy(session.ID) {
		t.Error("session should be busy")
	}

	if _, err := m.BeginGeneration(ctx, session.ID); err != ErrGenerationActive {
		t.Errorf("second BeginGeneration error = %v, want ErrGenerationActive", err)
	}

	m.EndGeneration(session.ID, first)
	if m.Busy(session.ID) {
		t.Error("session should be idle after EndGeneration")
	}

	if _, err := m.BeginGeneration(ctx, session.ID); err != nil {
		t.Errorf("BeginGeneration after end error: %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	ctx := context.Background()
	session, _ := m.GetOrCreate(ctx, "")

	// Cancel with nothing active is a no-op.
	m.Cancel(session.ID)
	m.Cancel("unknown-session")

	handle, _ := m.BeginGeneration(ctx, session.ID)
	m.Cancel(session.ID)
	m.Cancel(session.ID)

	if !handle.Tripped() {
		t.Error("cancellation handle should be tripped")
	}
	select {
	case <-handle.Context().Done():
	default:
		t.Error("cancellation context should be done")
	}
}

func TestQueueFIFO(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	ctx := context.Background()
	session, _ := m.GetOrCreate(ctx, "")

	for _, content := range []string{"A", "B", "C"} {
		if _, err := m.Enqueue(ctx, session.ID, models.QueuedMessage{Content: content}); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range []string{"A", "B", "C"} {
		head, err := m.FlushNext(ctx, session.ID)
		if err != nil {
			t.Fatal(err)
		}
		if head == nil || head.Content != want {
			t.Fatalf("FlushNext = %+v, want %q", head, want)
		}
	}

	head, err := m.FlushNext(ctx, session.ID)
	if err != nil || head != nil {
		t.Errorf("empty queue FlushNext = %+v, %v, want nil, nil", head, err)
	}
}

func TestResetClearsState(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	ctx := context.Background()
	session, _ := m.GetOrCreate(ctx, "")

	_ = m.Append(ctx, session.ID, testMessage("1", "a", models.RoleUser))
	_, _ = m.Enqueue(ctx, session.ID, models.QueuedMessage{Content: "queued"})
	handle, _ := m.BeginGeneration(ctx, session.ID)

	if err := m.Reset(ctx, session.ID); err != nil {
		t.Fatal(err)
	}

	if !handle.Tripped() {
		t.Error("reset should cancel the active generation")
	}
	snap, _ := m.Snapshot(ctx, session.ID)
	if len(snap) != 0 {
		t.Errorf("messages after reset = %+v", snap)
	}
	head, _ := m.FlushNext(ctx, session.ID)
	if head != nil {
		t.Errorf("queue after reset = %+v", head)
	}
}

func TestSessionExpiry(t *testing.T) {
	m := NewManager(nil, 30*time.Millisecond, nil)
	ctx := context.Background()
	session, _ := m.GetOrCreate(ctx, "")

	time.Sleep(120 * time.Millisecond)

	if _, err := m.Snapshot(ctx, session.ID); err == nil {
		t.Error("expired session should be gone")
	}
}

func TestExpiryDefersWhileGenerationActive(t *testing.T) {
	m := NewManager(nil, 30*time.Millisecond, nil)
	ctx := context.Background()
	session, _ := m.GetOrCreate(ctx, "")
	_, _ = m.BeginGeneration(ctx, session.ID)

	time.Sleep(120 * time.Millisecond)

	if _, err := m.Snapshot(ctx, session.ID); err != nil {
		t.Error("session with active generation must survive TTL expiry")
	}
}
