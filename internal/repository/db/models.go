// Package db defines the conversation store contract shared by all storage
// backends.
package db

import "time"

// Conversation roles. A conversation may be seeded with at most one system
// turn; everything after that alternates between user and assistant.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role is one of the three supported values.
func ValidRole(role string) bool {
	return role == RoleSystem || role == RoleUser || role == RoleAssistant
}

// Conversation represents a conversation in the database
type Conversation struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Turn represents one message in a conversation. Turns are append-only and
// totally ordered by Seq within their conversation.
type Turn struct {
	ID             string
	ConversationID string
	Seq            int64
	Role           string
	Content        string
	AttachmentRef  string
	CreatedAt      time.Time
}

// ConversationSummary is the read-only listing view. DisplayName falls back
// to a truncation of the first user turn when no explicit name was set.
type ConversationSummary struct {
	ID             string
	DisplayName    string
	LastActivityAt time.Time
	TurnCount      int
}

// Database is the conversation store contract. Every write is transactional:
// a failed operation leaves no partial state behind, and an AppendTurn is
// visible in full to the next GetTurns or not at all.
type Database interface {
	// CreateConversation creates an empty conversation. A non-empty
	// systemPrompt seeds a system turn in the same transaction.
	CreateConversation(name, systemPrompt string) (*Conversation, error)

	// GetConversation returns ErrNotFound for unknown IDs.
	GetConversation(id string) (*Conversation, error)

	// AppendTurn appends one turn and bumps the conversation's activity
	// timestamp. At least one of content and attachmentRef must be set.
	AppendTurn(conversationID, role, content, attachmentRef string) (*Turn, error)

	// GetTurns returns all turns in ascending sequence order. An unknown
	// conversation ID yields an empty slice, not an error.
	GetTurns(conversationID string) ([]Turn, error)

	// ListConversations returns summaries ordered by most recent activity.
	ListConversations() ([]ConversationSummary, error)

	// RenameConversation returns ErrNotFound for unknown IDs.
	RenameConversation(id, name string) error

	// DeleteConversation removes the conversation and all its turns in one
	// transaction. Returns false (and no error) for unknown IDs.
	DeleteConversation(id string) (bool, error)

	Close() error
}
