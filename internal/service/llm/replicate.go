package llm

import (
	"bufio"
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

// ReplicateProvider runs hosted models through the Replicate predictions
// API. Model families expect different input schemas, so the input is
// derived from the model identifier before caller overrides are applied.
type ReplicateProvider struct {
	config *config.LLMConfig
	client *http.Client
}

// NewReplicateProvider creates a new Replicate provider with config
func NewReplicateProvider(llmConfig *config.LLMConfig) *ReplicateProvider {
	return &ReplicateProvider{
		config: llmConfig,
		client: &http.Client{Timeout: 300 * time.Second},
	}
}

func (p *ReplicateProvider) Name() string {
	return string(KindReplicate)
}

type replicatePrediction struct {
	ID   string `json:"id"`
	URLs struct {
		Stream string `json:"stream"`
	} `json:"urls"`
}

// deriveModelInput builds the provider input for a model family. The
// family is recognized by substring match on the model identifier, and
// caller overrides win over derived defaults.
func deriveModelInput(model string, prompt string, messages []Message, overrides map[string]any) map[string]any {
	lower := strings.ToLower(model)

	var input map[string]any
	switch {
	case strings.Contains(lower, "mistral"):
		input = map[string]any{
			"prompt":             prompt,
			"temperature":        0.6,
			"top_p":              0.9,
			"max_length":         1024,
			"repetition_penalty": 1.0,
		}
	case strings.Contains(lower, "anthropic"):
		input = map[string]any{
			"prompt":               "Human: " + prompt + "\n\nAssistant:",
			"temperature":          0.6,
			"max_tokens_to_sample": 1024,
		}
	case strings.Contains(lower, "stability"):
		input = map[string]any{
			"prompt":      prompt,
			"width":       768,
			"height":      768,
			"num_outputs": 1,
		}
	default:
		input = map[string]any{
			"prompt":      prompt,
			"messages":    messages,
			"temperature": 0.6,
			"top_p":       0.9,
			"max_tokens":  1024,
		}
	}

	for key, value := range overrides {
		input[key] = value
	}

	return input
}

// CompleteChat creates a prediction and collects its streamed output.
func (p *ReplicateProvider) CompleteChat(ctx context.Context, prompt string, history []Message, cfg CallConfig) (string, error) {
	token := cfg.Credential
	if token == "" {
		token = p.config.ReplicateAPIToken
	}
	if token == "" {
		return "", &Error{Kind: ErrMissingCredential, Provider: p.Name(), Message: "REPLICATE_API_TOKEN not configured"}
	}

	model := cfg.Model
	if model == "" {
		model = p.config.ReplicateModel
	}

	systemPrompt, rest := extractSystemPrompt(history)
	if cfg.SystemPrompt != "" {
		systemPrompt = cfg.SystemPrompt
	}

	messages := make([]Message, 0, len(rest)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, rest...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	input := deriveModelInput(model, prompt, messages, cfg.Options)

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"message_count": len(messages),
	}).Info("Calling Replicate API")

	prediction, err := p.createPrediction(ctx, token, model, input)
	if err != nil {
		return "", err
	}

	if prediction.URLs.Stream == "" {
		return "", &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "prediction has no stream URL"}
	}

	content, err := p.readStream(ctx, token, prediction.URLs.Stream)
	if err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		logger.Log.WithField("model", model).Warn("Replicate returned empty output, using fallback")
		return FallbackResponse, nil
	}

	logger.Log.WithField("content_length", len(content)).Debug("Collected streamed output")
	return content, nil
}

// createPrediction starts a prediction. Models pinned to a version use
// the generic predictions endpoint; bare model identifiers use the
// model-scoped one.
func (p *ReplicateProvider) createPrediction(ctx context.Context, token string, model string, input map[string]any) (*replicatePrediction, error) {
	var url string
	body := map[string]any{
		"input":  input,
		"stream": true,
	}

	if _, version, ok := strings.Cut(model, ":"); ok {
		url = p.config.ReplicateBaseURL + "/predictions"
		body["version"] = version
	} else {
		url = p.config.ReplicateBaseURL + "/models/" + model + "/predictions"
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "error marshaling request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error creating request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error sending request", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &Error{
			Kind:     ErrUnreachable,
			Provider: p.Name(),
			Message:  fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error reading response body", Cause: err}
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return nil, &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "error decoding response", Cause: err}
	}

	return &prediction, nil
}

// readStream consumes the prediction's SSE stream and concatenates the
// output events until the done event arrives.
func (p *ReplicateProvider) readStream(ctx context.Context, token string, streamURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return "", &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error creating stream request", Cause: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &Error{Kind: ErrUnreachable, Provider: p.Name(), Message: "error opening stream", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Kind:     ErrUnreachable,
			Provider: p.Name(),
			Message:  fmt.Sprintf("stream returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var output strings.Builder
	event := ""

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			if event == "done" {
				return output.String(), nil
			}
		case strings.HasPrefix(line, "data:"):
			if event == "output" {
				output.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return "", &Error{Kind: ErrBadResponse, Provider: p.Name(), Message: "error reading stream", Cause: err}
	}

	return output.String(), nil
}
