package chat

import (
	"context"
	"fmt"
	"strings"

	"offgrid-chat/internal/attachment"
	"offgrid-chat/internal/config"
	"offgrid-chat/internal/logger"
	"offgrid-chat/internal/repository/db"
	"offgrid-chat/internal/service/llm"

	"github.com/sirupsen/logrus"
)

// SendMessageRequest contains all the parameters needed to send a message
type SendMessageRequest struct {
	Message        string
	ConversationID string
	Provider       string
	Model          string
	Credential     string
	SystemPrompt   string
	Options        map[string]any
	Attachment     []byte
	AttachmentExt  string
}

// SendMessageResponse contains the response from sending a message
type SendMessageResponse struct {
	Response       string
	ConversationID string
	Provider       string
	Model          string
}

// ChatService handles the business logic for chat operations
type ChatService struct {
	db          db.Database
	config      *config.AppConfig
	retryer     *llm.Retryer
	providers   map[llm.ProviderKind]llm.Provider
	attachments *attachment.Store
}

// NewChatService creates a new ChatService
func NewChatService(database db.Database, appConfig *config.AppConfig, attachments *attachment.Store) *ChatService {
	return &ChatService{
		db:          database,
		config:      appConfig,
		retryer:     llm.NewRetryer(appConfig.LLM.MaxRetries, appConfig.LLM.RetryDelay),
		providers:   llm.NewProviders(&appConfig.LLM),
		attachments: attachments,
	}
}

// NewChatServiceWith wires a ChatService from explicit parts. Used by
// tests to inject mocks.
func NewChatServiceWith(database db.Database, appConfig *config.AppConfig, retryer *llm.Retryer, providers map[llm.ProviderKind]llm.Provider, attachments *attachment.Store) *ChatService {
	return &ChatService{
		db:          database,
		config:      appConfig,
		retryer:     retryer,
		providers:   providers,
		attachments: attachments,
	}
}

// SendMessage processes a chat message and returns the LLM response.
// When the assistant reply cannot be persisted, the reply text is still
// returned alongside the storage error so the caller can surface both.
func (s *ChatService) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	kind := llm.KindFromString(req.Provider)
	provider, ok := s.providers[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", kind)
	}

	// A turn with no text and no attachment never reaches the store or
	// the provider.
	if strings.TrimSpace(req.Message) == "" && len(req.Attachment) == 0 {
		return nil, &llm.Error{Kind: llm.ErrEmptyInput, Provider: provider.Name(), Message: "message is empty"}
	}

	conversation, err := s.getOrCreateConversation(req)
	if err != nil {
		return nil, err
	}

	attachmentRef := ""
	if len(req.Attachment) > 0 {
		attachmentRef, err = s.attachments.Save(conversation.ID, req.Attachment, req.AttachmentExt)
		if err != nil {
			return nil, &db.StorageError{Op: "save attachment", Cause: err}
		}
	}

	userTurn, err := s.db.AppendTurn(conversation.ID, db.RoleUser, req.Message, attachmentRef)
	if err != nil {
		return nil, err
	}

	history, err := s.buildHistory(conversation.ID, userTurn.ID)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conversation.ID,
		"provider":        provider.Name(),
		"history_size":    len(history),
	}).Debug("Prepared for LLM call")

	callCfg := llm.CallConfig{
		Credential:   req.Credential,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Options:      req.Options,
	}

	response, err := s.retryer.Do(ctx, provider.Name(), func(ctx context.Context) (string, error) {
		return provider.CompleteChat(ctx, req.Message, history, callCfg)
	})
	if err != nil {
		return nil, err
	}

	resp := &SendMessageResponse{
		Response:       response,
		ConversationID: conversation.ID,
		Provider:       provider.Name(),
		Model:          req.Model,
	}

	if _, err := s.db.AppendTurn(conversation.ID, db.RoleAssistant, response, ""); err != nil {
		logger.Log.WithError(err).Error("Error saving assistant turn")
		return resp, err
	}

	return resp, nil
}

// getOrCreateConversation retrieves an existing conversation or creates
// a new one seeded with the default system prompt.
func (s *ChatService) getOrCreateConversation(req SendMessageRequest) (*db.Conversation, error) {
	if req.ConversationID != "" {
		return s.db.GetConversation(req.ConversationID)
	}
	return s.db.CreateConversation("", s.config.LLM.DefaultSystemPrompt)
}

// buildHistory loads the stored turns in order, dropping the turn that
// was just appended (the provider resends it as the prompt) and turns
// with no text.
func (s *ChatService) buildHistory(conversationID string, excludeTurnID string) ([]llm.Message, error) {
	turns, err := s.db.GetTurns(conversationID)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		if turn.ID == excludeTurnID || turn.Content == "" {
			continue
		}
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	return history, nil
}
