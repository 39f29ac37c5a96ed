package conversation

import (
	"offgrid-chat/internal/logger"
	"offgrid-chat/internal/repository/db"
)

// ConversationService handles the business logic for conversation management
type ConversationService struct {
	db db.Database
}

// NewConversationService creates a new ConversationService
func NewConversationService(database db.Database) *ConversationService {
	return &ConversationService{
		db: database,
	}
}

// ListConversations returns summaries of all conversations, most recent
// activity first.
func (s *ConversationService) ListConversations() ([]db.ConversationSummary, error) {
	return s.db.ListConversations()
}

// CreateConversation creates a named conversation seeded with the given
// system prompt. Either argument may be empty.
func (s *ConversationService) CreateConversation(name string, systemPrompt string) (*db.Conversation, error) {
	return s.db.CreateConversation(name, systemPrompt)
}

// GetConversationTurns retrieves all turns from a conversation in append
// order. The conversation must exist.
func (s *ConversationService) GetConversationTurns(conversationID string) ([]db.Turn, error) {
	if _, err := s.db.GetConversation(conversationID); err != nil {
		return nil, err
	}
	return s.db.GetTurns(conversationID)
}

// RenameConversation sets the explicit name of a conversation.
func (s *ConversationService) RenameConversation(conversationID string, name string) error {
	return s.db.RenameConversation(conversationID, name)
}

// DeleteConversation removes a conversation and its turns. It reports
// whether the conversation existed; deleting an unknown ID is not an
// error.
func (s *ConversationService) DeleteConversation(conversationID string) (bool, error) {
	deleted, err := s.db.DeleteConversation(conversationID)
	if err != nil {
		return false, err
	}
	if !deleted {
		logger.Log.WithField("conversation_id", conversationID).Debug("Delete of unknown conversation ignored")
	}
	return deleted, nil
}
