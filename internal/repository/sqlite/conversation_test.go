package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"offgrid-chat/internal/repository/db"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()

	database, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database
}

// Test CreateConversation - seeded system turn
func TestCreateConversation_SeedsSystemTurn(t *testing.T) {
	database := newTestDB(t)

	conv, err := database.CreateConversation("My chat", "You are helpful.")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("Expected conversation ID to be set")
	}
	if conv.Name != "My chat" {
		t.Errorf("Expected name 'My chat', got '%s'", conv.Name)
	}

	turns, err := database.GetTurns(conv.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("Expected 1 seeded turn, got %d", len(turns))
	}
	if turns[0].Role != db.RoleSystem || turns[0].Content != "You are helpful." {
		t.Errorf("Expected seeded system turn, got %+v", turns[0])
	}
	if turns[0].Seq != 1 {
		t.Errorf("Expected seq 1, got %d", turns[0].Seq)
	}
}

// Test CreateConversation - empty system prompt seeds nothing
func TestCreateConversation_NoSystemPrompt(t *testing.T) {
	database := newTestDB(t)

	conv, err := database.CreateConversation("", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	turns, err := database.GetTurns(conv.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Expected no turns, got %d", len(turns))
	}
}

// Test GetConversation - unknown ID yields ErrNotFound
func TestGetConversation_NotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetConversation("no-such-id")
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

// Test AppendTurn - turns come back in append order with increasing seq
func TestAppendTurn_Ordering(t *testing.T) {
	database := newTestDB(t)

	conv, err := database.CreateConversation("", "system prompt")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	contents := []string{"first", "second", "third", "fourth"}
	for i, content := range contents {
		role := db.RoleUser
		if i%2 == 1 {
			role = db.RoleAssistant
		}
		if _, err := database.AppendTurn(conv.ID, role, content, ""); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	turns, err := database.GetTurns(conv.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("Expected 5 turns (seed + 4), got %d", len(turns))
	}

	for i, turn := range turns {
		if turn.Seq != int64(i+1) {
			t.Errorf("Turn %d: expected seq %d, got %d", i, i+1, turn.Seq)
		}
	}
	for i, content := range contents {
		if turns[i+1].Content != content {
			t.Errorf("Expected content '%s' at position %d, got '%s'", content, i+1, turns[i+1].Content)
		}
	}
}

// Test AppendTurn - unknown conversation yields ErrNotFound
func TestAppendTurn_UnknownConversation(t *testing.T) {
	database := newTestDB(t)

	_, err := database.AppendTurn("no-such-id", db.RoleUser, "hello", "")
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

// Test AppendTurn - invalid role rejected
func TestAppendTurn_InvalidRole(t *testing.T) {
	database := newTestDB(t)

	conv, err := database.CreateConversation("", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err = database.AppendTurn(conv.ID, "narrator", "hello", "")
	if err == nil {
		t.Fatal("Expected error for invalid role, got nil")
	}
	if !db.IsStorageError(err) {
		t.Errorf("Expected StorageError, got: %v", err)
	}
}

// Test AppendTurn - a turn needs content or an attachment ref
func TestAppendTurn_NoContentNoAttachment(t *testing.T) {
	database := newTestDB(t)

	conv, err := database.CreateConversation("", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err = database.AppendTurn(conv.ID, db.RoleUser, "", "")
	if err == nil {
		t.Fatal("Expected error for empty turn, got nil")
	}
	if !db.IsStorageError(err) {
		t.Errorf("Expected StorageError, got: %v", err)
	}

	turns, err := database.GetTurns(conv.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Expected no turns stored, got %d", len(turns))
	}
}

// Test AppendTurn - attachment ref round-trips
func TestAppendTurn_AttachmentRef(t *testing.T) {
	database := newTestDB(t)

	conv, err := database.CreateConversation("", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := database.AppendTurn(conv.ID, db.RoleUser, "see attached", conv.ID+"/12345.png"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	turns, err := database.GetTurns(conv.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if turns[0].AttachmentRef != conv.ID+"/12345.png" {
		t.Errorf("Expected attachment ref to round-trip, got '%s'", turns[0].AttachmentRef)
	}
}

// Test GetTurns - unknown conversation yields an empty slice
func TestGetTurns_UnknownConversation(t *testing.T) {
	database := newTestDB(t)

	turns, err := database.GetTurns("no-such-id")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Expected empty slice, got %d turns", len(turns))
	}
}

// Test ListConversations - most recent activity first, with display names
func TestListConversations_OrderAndDisplayNames(t *testing.T) {
	database := newTestDB(t)

	first, err := database.CreateConversation("", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := database.AppendTurn(first.ID, db.RoleUser, "Tell me about turtles", ""); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	second, err := database.CreateConversation("Named chat", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := database.AppendTurn(second.ID, db.RoleUser, "hello", ""); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	summaries, err := database.ListConversations()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}

	// second had the latest activity
	if summaries[0].ID != second.ID {
		t.Errorf("Expected most recently active conversation first, got %s", summaries[0].ID)
	}
	if summaries[0].DisplayName != "Named chat" {
		t.Errorf("Expected explicit name to win, got '%s'", summaries[0].DisplayName)
	}
	if summaries[1].DisplayName != "Tell me about turtles" {
		t.Errorf("Expected first user turn as display name, got '%s'", summaries[1].DisplayName)
	}
	if summaries[1].TurnCount != 1 {
		t.Errorf("Expected turn count 1, got %d", summaries[1].TurnCount)
	}
}

// Test ListConversations - unnamed conversation with no user turns
func TestListConversations_EmptyFallbackName(t *testing.T) {
	database := newTestDB(t)

	if _, err := database.CreateConversation("", "seed prompt"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	summaries, err := database.ListConversations()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].DisplayName != "New conversation" {
		t.Errorf("Expected placeholder display name, got '%s'", summaries[0].DisplayName)
	}
}

// Test RenameConversation
func TestRenameConversation(t *testing.T) {
	database := newTestDB(t)

	conv, err := database.CreateConversation("old name", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := database.RenameConversation(conv.ID, "new name"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err := database.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.Name != "new name" {
		t.Errorf("Expected name 'new name', got '%s'", got.Name)
	}
}

// Test RenameConversation - unknown ID yields ErrNotFound
func TestRenameConversation_NotFound(t *testing.T) {
	database := newTestDB(t)

	err := database.RenameConversation("no-such-id", "name")
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

// Test DeleteConversation - removes the conversation and its turns
func TestDeleteConversation(t *testing.T) {
	database := newTestDB(t)

	conv, err := database.CreateConversation("", "seed")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := database.AppendTurn(conv.ID, db.RoleUser, "hello", ""); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	deleted, err := database.DeleteConversation(conv.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !deleted {
		t.Error("Expected deleted to be true")
	}

	if _, err := database.GetConversation(conv.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected conversation to be gone, got: %v", err)
	}

	turns, err := database.GetTurns(conv.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Expected turns to cascade, got %d", len(turns))
	}
}

// Test DeleteConversation - unknown ID is not an error
func TestDeleteConversation_Unknown(t *testing.T) {
	database := newTestDB(t)

	deleted, err := database.DeleteConversation("no-such-id")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if deleted {
		t.Error("Expected deleted to be false")
	}
}
