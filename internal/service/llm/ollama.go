package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"offgrid-chat/internal/config"
	"offgrid-chat/internal/logger"

	"github.com/sirupsen/logrus"
)

// OllamaProvider talks to a local Ollama server over its /api/chat
// endpoint. It needs no credential.
type OllamaProvider struct {
	config *config.LLMConfig
	client *http.Client
}

// NewOllamaProvider creates a new Ollama provider with config
func NewOllamaProvider(llmConfig *config.LLMConfig) *OllamaProvider {
	return &OllamaProvider{
		config: llmConfig,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OllamaProvider) Name() string {
	return string(KindOllama)
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message *Message `json:"message"`
}

// CompleteChat sends the prompt plus history to Ollama and returns the
// trimmed reply. An attachment-only turn arrives with no text; the prompt
// is replaced with "Hello" so the model still opens the exchange.
func (p *OllamaProvider) CompleteChat(ctx context.Context, prompt string, history []Message, cfg CallConfig) (string, error) {
	model := cfg.Model
	if model == "" {
		model = p.config.OllamaModel
	}

	if strings.TrimSpace(prompt) == "" {
		prompt = "Hello"
	}

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"message_count": len(messages),
	}).Info("Calling Ollama API")

	reqBody := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "error marshaling request", Cause: err}
	}

	url := p.config.OllamaEndpoint + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error creating request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "server not running at " + p.config.OllamaEndpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Kind:     ErrUnreachable,
			Provider: p.Name(),
			Message:  fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error reading response body", Cause: err}
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "error decoding response", Cause: err}
	}

	if chatResp.Message == nil {
		return "", &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "response has no message field"}
	}

	content := strings.TrimSpace(chatResp.Message.Content)
	if content == "" {
		logger.Log.WithField("model", model).Warn("Ollama returned empty content, using fallback")
		return FallbackResponse, nil
	}

	logger.Log.WithField("content_length", len(content)).Debug("Extracted content from response")
	return content, nil
}
