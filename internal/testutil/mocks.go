package testutil

import (
	"context"
	"errors"
	"time"

	"offgrid-chat/internal/config"
	"offgrid-chat/internal/repository/db"
	"offgrid-chat/internal/service/llm"
)

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	CreateConversationFunc func(name, systemPrompt string) (*db.Conversation, error)
	GetConversationFunc    func(id string) (*db.Conversation, error)
	AppendTurnFunc         func(conversationID, role, content, attachmentRef string) (*db.Turn, error)
	GetTurnsFunc           func(conversationID string) ([]db.Turn, error)
	ListConversationsFunc  func() ([]db.ConversationSummary, error)
	RenameConversationFunc func(id, name string) error
	DeleteConversationFunc func(id string) (bool, error)
	CloseFunc              func() error
}

func (m *MockDatabase) CreateConversation(name, systemPrompt string) (*db.Conversation, error) {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(name, systemPrompt)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetConversation(id string) (*db.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) AppendTurn(conversationID, role, content, attachmentRef string) (*db.Turn, error) {
	if m.AppendTurnFunc != nil {
		return m.AppendTurnFunc(conversationID, role, content, attachmentRef)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetTurns(conversationID string) ([]db.Turn, error) {
	if m.GetTurnsFunc != nil {
		return m.GetTurnsFunc(conversationID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) ListConversations() ([]db.ConversationSummary, error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc()
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) RenameConversation(id, name string) error {
	if m.RenameConversationFunc != nil {
		return m.RenameConversationFunc(id, name)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) DeleteConversation(id string) (bool, error) {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(id)
	}
	return false, errors.New("not implemented")
}

func (m *MockDatabase) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockProvider is a mock implementation of llm.Provider for testing
type MockProvider struct {
	NameFunc         func() string
	CompleteChatFunc func(ctx context.Context, prompt string, history []llm.Message, cfg llm.CallConfig) (string, error)
}

func (m *MockProvider) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

func (m *MockProvider) CompleteChat(ctx context.Context, prompt string, history []llm.Message, cfg llm.CallConfig) (string, error) {
	if m.CompleteChatFunc != nil {
		return m.CompleteChatFunc(ctx, prompt, history, cfg)
	}
	return "", errors.New("not implemented")
}

// NewTestConfig creates an AppConfig suitable for tests
func NewTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Storage: config.StorageConfig{
			Backend: config.BackendSQLite,
		},
		LLM: config.LLMConfig{
			OllamaEndpoint:      "http://localhost:11434",
			OllamaModel:         "test-model",
			OpenAIBaseURL:       "https://api.openai.com/v1",
			OpenAIModel:         "o3-mini",
			ReplicateBaseURL:    "https://api.replicate.com/v1",
			ReplicateModel:      "test/model",
			DefaultSystemPrompt: "You are a helpful assistant.",
			MaxRetries:          3,
			RetryDelay:          2 * time.Second,
		},
	}
}
