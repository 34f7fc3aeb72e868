package db

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCreateAndAuthenticateUser(t *testing.T) {
	database := setupTestDB(t)

	if err := database.CreateUser("alice", "secret"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	ok, err := database.AuthenticateUser("alice", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = database.AuthenticateUser("alice", "wrong")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}

	ok, err = database.AuthenticateUser("nobody", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ok {
		t.Error("unknown user accepted")
	}
}

func TestDuplicateLogin(t *testing.T) {
	database := setupTestDB(t)

	if err := database.CreateUser("alice", "secret"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := database.CreateUser("alice", "other"); err == nil {
		t.Error("duplicate login accepted")
	}
}

func TestUserExists(t *testing.T) {
	database := setupTestDB(t)

	exists, err := database.UserExists("alice")
	if err != nil {
		t.Fatalf("user exists: %v", err)
	}
	if exists {
		t.Error("user should not exist yet")
	}

	if err := database.CreateUser("alice", "secret"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	exists, err = database.UserExists("alice")
	if err != nil {
		t.Fatalf("user exists: %v", err)
	}
	if !exists {
		t.Error("user should exist")
	}
}

func TestAppendAndListMessages(t *testing.T) {
	database := setupTestDB(t)

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	// inserted out of timestamp order
	id2, err := database.AppendMessage("bob", "alice", "second", base.Add(time.Second))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	id1, err := database.AppendMessage("alice", "bob", "first", base)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id1 == id2 {
		t.Error("row ids should be distinct")
	}

	messages, err := database.AllMessages()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Text != "first" || messages[1].Text != "second" {
		t.Errorf("messages not ordered by timestamp: %v, %v", messages[0].Text, messages[1].Text)
	}
	if messages[0].ID != id1 {
		t.Errorf("expected id %d, got %d", id1, messages[0].ID)
	}
	if !messages[0].Timestamp.Equal(base) {
		t.Errorf("timestamp mangled: %v", messages[0].Timestamp)
	}
}

func TestSameTimestampOrdersByID(t *testing.T) {
	database := setupTestDB(t)

	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, text := range []string{"one", "two", "three"} {
		if _, err := database.AppendMessage("alice", "bob", text, ts); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	messages, err := database.AllMessages()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"one", "two", "three"} {
		if messages[i].Text != want {
			t.Errorf("position %d: expected %q, got %q", i, want, messages[i].Text)
		}
	}
}

func TestMessageCount(t *testing.T) {
	database := setupTestDB(t)

	count, err := database.MessageCount()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0, got %d", count)
	}

	ts := time.Now().UTC()
	if _, err := database.AppendMessage("alice", "bob", "hi", ts); err != nil {
		t.Fatalf("append: %v", err)
	}

	count, err = database.MessageCount()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1, got %d", count)
	}
}
