package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"offgrid-chat/internal/app"
	"offgrid-chat/internal/logger"
	"offgrid-chat/internal/repository/db"
	chatService "offgrid-chat/internal/service/chat"
	conversationService "offgrid-chat/internal/service/conversation"
	"offgrid-chat/internal/service/llm"
	"offgrid-chat/pkg/validation"

	"github.com/sirupsen/logrus"
)

// Request/Response types

type ChatRequest struct {
	Message        string         `json:"message,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Provider       string         `json:"provider,omitempty"` // "ollama", "openai" or "replicate"
	Model          string         `json:"model,omitempty"`
	APIKey         string         `json:"api_key,omitempty"`
	SystemPrompt   string         `json:"system_prompt,omitempty"`
	ModelParams    map[string]any `json:"model_params,omitempty"`
	Attachment     string         `json:"attachment,omitempty"` // base64-encoded
	AttachmentExt  string         `json:"attachment_ext,omitempty"`
}

type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	Warning        string `json:"warning,omitempty"`
}

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type ConversationInfo struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	TurnCount      int    `json:"turn_count"`
	LastActivityAt string `json:"last_activity_at"`
}

type ConversationsResponse struct {
	Conversations []ConversationInfo `json:"conversations"`
}

type CreateConversationRequest struct {
	Name         string `json:"name,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type CreateConversationResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type RenameConversationRequest struct {
	Name string `json:"name"`
}

type TurnData struct {
	ID            string `json:"id"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type TurnsResponse struct {
	Turns []TurnData `json:"turns"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ChatHandlers uses the service layer for better separation of concerns
type ChatHandlers struct {
	app                 *app.App
	validator           *validation.ChatRequestValidator
	chatService         *chatService.ChatService
	conversationService *conversationService.ConversationService
}

// NewChatHandlers creates a new ChatHandlers with service layer
func NewChatHandlers(application *app.App) *ChatHandlers {
	return &ChatHandlers{
		app:                 application,
		validator:           validation.NewChatRequestValidator(),
		chatService:         chatService.NewChatService(application.DB, application.Config, application.Attachments),
		conversationService: conversationService.NewConversationService(application.DB),
	}
}

// sendError sends a standardized JSON error response
func (ch *ChatHandlers) sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

func (ch *ChatHandlers) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// statusForError maps a service failure to an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case llm.IsRetriesExhausted(err):
		return http.StatusBadGateway
	case db.IsStorageError(err):
		return http.StatusInternalServerError
	}

	switch llm.KindOf(err) {
	case llm.ErrEmptyInput:
		return http.StatusBadRequest
	case llm.ErrMissingCredential:
		return http.StatusUnauthorized
	case llm.ErrUnreachable, llm.ErrBadResponse:
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// HealthHandler reports liveness
func (ch *ChatHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// LoginHandler checks the access password and returns a JWT token
func (ch *ChatHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	token, err := ch.app.Auth.Login(req.Password)
	if err != nil {
		logger.Log.WithError(err).Warn("Login rejected")
		ch.sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	ch.sendJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// ChatHandler submits a message and returns the assistant's reply
func (ch *ChatHandlers) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var temperature *float64
	if raw, ok := req.ModelParams["temperature"]; ok {
		if f, ok := raw.(float64); ok {
			temperature = &f
		}
	}

	if err := ch.validator.ValidateChatRequest(req.Message, req.Attachment != "", req.Provider, temperature, req.AttachmentExt); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	var attachmentData []byte
	if req.Attachment != "" {
		var err error
		attachmentData, err = base64.StdEncoding.DecodeString(req.Attachment)
		if err != nil {
			ch.sendError(w, http.StatusBadRequest, "Invalid attachment encoding", err)
			return
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"message_chars":   len(req.Message),
		"provider":        req.Provider,
		"conversation_id": req.ConversationID,
	}).Debug("Processing chat message")

	resp, err := ch.chatService.SendMessage(r.Context(), chatService.SendMessageRequest{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Provider:       req.Provider,
		Model:          req.Model,
		Credential:     req.APIKey,
		SystemPrompt:   req.SystemPrompt,
		Options:        req.ModelParams,
		Attachment:     attachmentData,
		AttachmentExt:  req.AttachmentExt,
	})
	if err != nil {
		// A reply that could not be persisted is still worth showing.
		if resp != nil {
			logger.Log.WithError(err).Warn("Reply generated but not persisted")
			ch.sendJSON(w, http.StatusOK, ChatResponse{
				Response:       resp.Response,
				ConversationID: resp.ConversationID,
				Provider:       resp.Provider,
				Model:          resp.Model,
				Warning:        "response could not be saved to the conversation",
			})
			return
		}
		logger.Log.WithError(err).Error("Error from chat service")
		ch.sendError(w, statusForError(err), "Chat request failed", err)
		return
	}

	ch.sendJSON(w, http.StatusOK, ChatResponse{
		Response:       resp.Response,
		ConversationID: resp.ConversationID,
		Provider:       resp.Provider,
		Model:          resp.Model,
	})
}

// GetConversationsHandler returns summaries of all conversations
func (ch *ChatHandlers) GetConversationsHandler(w http.ResponseWriter, r *http.Request) {
	summaries, err := ch.conversationService.ListConversations()
	if err != nil {
		logger.Log.WithError(err).Error("Error listing conversations")
		ch.sendError(w, statusForError(err), "Failed to list conversations", err)
		return
	}

	infos := make([]ConversationInfo, 0, len(summaries))
	for _, summary := range summaries {
		infos = append(infos, ConversationInfo{
			ID:             summary.ID,
			DisplayName:    summary.DisplayName,
			TurnCount:      summary.TurnCount,
			LastActivityAt: summary.LastActivityAt.Format(time.RFC3339),
		})
	}

	ch.sendJSON(w, http.StatusOK, ConversationsResponse{Conversations: infos})
}

// CreateConversationHandler creates a conversation up front, before any
// message is sent
func (ch *ChatHandlers) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := ch.validator.ValidateConversationName(req.Name); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = ch.app.Config.LLM.DefaultSystemPrompt
	}

	conv, err := ch.conversationService.CreateConversation(req.Name, systemPrompt)
	if err != nil {
		logger.Log.WithError(err).Error("Error creating conversation")
		ch.sendError(w, statusForError(err), "Failed to create conversation", err)
		return
	}

	ch.sendJSON(w, http.StatusCreated, CreateConversationResponse{
		ID:        conv.ID,
		Name:      conv.Name,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
	})
}

// GetConversationTurnsHandler returns all turns of a conversation
func (ch *ChatHandlers) GetConversationTurnsHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	turns, err := ch.conversationService.GetConversationTurns(conversationID)
	if err != nil {
		logger.Log.WithError(err).Error("Error retrieving turns")
		ch.sendError(w, statusForError(err), "Failed to retrieve conversation", err)
		return
	}

	data := make([]TurnData, 0, len(turns))
	for _, turn := range turns {
		data = append(data, TurnData{
			ID:            turn.ID,
			Role:          turn.Role,
			Content:       turn.Content,
			AttachmentRef: turn.AttachmentRef,
			CreatedAt:     turn.CreatedAt.Format(time.RFC3339),
		})
	}

	ch.sendJSON(w, http.StatusOK, TurnsResponse{Turns: data})
}

// RenameConversationHandler sets a conversation's explicit name
func (ch *ChatHandlers) RenameConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req RenameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := ch.validator.ValidateConversationName(req.Name); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if err := ch.conversationService.RenameConversation(conversationID, req.Name); err != nil {
		logger.Log.WithError(err).Error("Error renaming conversation")
		ch.sendError(w, statusForError(err), "Failed to rename conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteConversationHandler removes a conversation and its turns
func (ch *ChatHandlers) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	deleted, err := ch.conversationService.DeleteConversation(conversationID)
	if err != nil {
		logger.Log.WithError(err).Error("Error deleting conversation")
		ch.sendError(w, statusForError(err), "Failed to delete conversation", err)
		return
	}

	ch.sendJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}
