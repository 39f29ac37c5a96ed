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

// OpenAIProvider talks to the OpenAI chat completions API with a
// reasoning model. A credential is required before any request is made.
type OpenAIProvider struct {
	config *config.LLMConfig
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider with config
func NewOpenAIProvider(llmConfig *config.LLMConfig) *OpenAIProvider {
	return &OpenAIProvider{
		config: llmConfig,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAIProvider) Name() string {
	return string(KindOpenAI)
}

type openAIChatRequest struct {
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	ReasoningEffort string    `json:"reasoning_effort,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// CompleteChat sends the prompt plus history to OpenAI and returns the
// trimmed reply.
func (p *OpenAIProvider) CompleteChat(ctx context.Context, prompt string, history []Message, cfg CallConfig) (string, error) {
	apiKey := cfg.Credential
	if apiKey == "" {
		apiKey = p.config.OpenAIAPIKey
	}
	if apiKey == "" {
		return "", &Error{Kind: ErrMissingCredential, Provider: p.Name(), Message: "OPENAI_API_KEY not configured"}
	}

	model := cfg.Model
	if model == "" {
		model = p.config.OpenAIModel
	}

	systemPrompt, rest := extractSystemPrompt(history)
	if cfg.SystemPrompt != "" {
		systemPrompt = cfg.SystemPrompt
	}

	messages := make([]Message, 0, len(rest)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, rest...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"message_count": len(messages),
	}).Info("Calling OpenAI API")

	reqBody := openAIChatRequest{
		Model:           model,
		Messages:        messages,
		ReasoningEffort: "medium",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "error marshaling request", Cause: err}
	}

	url := p.config.OpenAIBaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error creating request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error sending request", Cause: err}
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

	var chatResp openAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "error decoding response", Cause: err}
	}

	if len(chatResp.Choices) == 0 {
		return "", &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "response has no choices"}
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		logger.Log.WithField("model", model).Warn("OpenAI returned empty content, using fallback")
		return FallbackResponse, nil
	}

	logger.Log.WithField("content_length", len(content)).Debug("Extracted content from response")
	return content, nil
}
