package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/agentrt/agentrt/pkg/models"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SQLiteStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock, NewSQLiteStoreFromDB(db)
}

func TestTouchSession(t *testing.T) {
	_, mock, store := setupMockDB(t)

	now := time.Now()
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("sess-1", now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.TouchSession(context.Background(), "sess-1", now); err != nil {
		t.Fatalf("TouchSession() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAppendMessage(t *testing.T) {
	_, mock, store := setupMockDB(t)

	msg := models.ChatMessage{ID: "m1", Role: models.RoleUser, Content: "hi", Timestamp: 42}
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("sess-1", 1, "m1", "user", "hi", int64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.AppendMessage(context.Background(), "sess-1", 1, msg); err != nil {
		t.Fatalf("AppendMessage() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAppendMessageDatabaseError(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectExec("INSERT INTO messages").
		WillReturnError(errors.New("disk I/O error"))

	err := store.AppendMessage(context.Background(), "sess-1", 1, models.ChatMessage{ID: "m1", Role: models.RoleUser})
	if err == nil {
		t.Fatal("AppendMessage() expected error")
	}
}

func TestReplaceMessages(t *testing.T) {
	_, mock, store := setupMockDB(t)

	msgs := []models.ChatMessage{
		{ID: "s1", Role: models.RoleSystem, Content: "[Conversation Summary]\nstuff", Timestamp: 1},
		{ID: "m9", Role: models.RoleUser, Content: "latest", Timestamp: 2},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM messages").
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("sess-1", 1, "s1", "system", msgs[0].Content, int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("sess-1", 2, "m9", "user", "latest", int64(2)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := store.ReplaceMessages(context.Background(), "sess-1", msgs); err != nil {
		t.Fatalf("ReplaceMessages() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestReplaceMessagesRollsBackOnFailure(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM messages").
		WithArgs("sess-1").
		WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := store.ReplaceMessages(context.Background(), "sess-1", nil)
	if err == nil {
		t.Fatal("ReplaceMessages() expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLoadMessages(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT message_id, role, content, created_at FROM messages").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "role", "content", "created_at"}).
			AddRow("m1", "user", "hi", int64(1)).
			AddRow("m2", "assistant", "hello", int64(2)))

	msgs, err := store.LoadMessages(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LoadMessages() error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("roles = %q, %q", msgs[0].Role, msgs[1].Role)
	}
}

func TestLoadMessagesUnknownSession(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := store.LoadMessages(context.Background(), "ghost")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	_, mock, store := setupMockDB(t)

	cutoff := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM messages WHERE session_id IN").
		WithArgs(cutoff.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("DELETE FROM sessions WHERE updated_at").
		WithArgs(cutoff.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	dropped, err := store.DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired() error: %v", err)
	}
	if dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestManagerRehydratesFromStore(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("cold-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT message_id, role, content, created_at FROM messages").
		WithArgs("cold-1").
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "role", "content", "created_at"}).
			AddRow("m1", "user", "hi", int64(1)))

	m := NewManager(store, time.Minute, nil)
	session, err := m.GetOrCreate(context.Background(), "cold-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	if len(session.Messages) != 1 || session.Messages[0].Content != "hi" {
		t.Errorf("rehydrated messages = %+v", session.Messages)
	}
}
