package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"offgrid-chat/internal/config"
)

// Test CompleteChat - missing credential fails before any network call
func TestOpenAICompleteChat_MissingCredential(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	provider := NewOpenAIProvider(&config.LLMConfig{
		OpenAIBaseURL: server.URL,
		OpenAIModel:   "o3-mini",
	})

	_, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if KindOf(err) != ErrMissingCredential {
		t.Errorf("Expected missing credential kind, got %v", KindOf(err))
	}
	if requests != 0 {
		t.Errorf("Expected no HTTP requests, got %d", requests)
	}
}

// Test CompleteChat - success sends the reasoning effort and system prompt
func TestOpenAICompleteChat_Success(t *testing.T) {
	var gotReq openAIChatRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": " The answer is 42. "}},
			},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(&config.LLMConfig{
		OpenAIBaseURL: server.URL,
		OpenAIAPIKey:  "sk-test",
		OpenAIModel:   "o3-mini",
	})

	history := []Message{
		{Role: "system", Content: "You are terse."},
		{Role: "user", Content: "Earlier question"},
	}

	result, err := provider.CompleteChat(context.Background(), "What is the answer?", history, CallConfig{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "The answer is 42." {
		t.Errorf("Expected trimmed reply, got '%s'", result)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Expected bearer auth header, got '%s'", gotAuth)
	}
	if gotReq.Model != "o3-mini" {
		t.Errorf("Expected model 'o3-mini', got '%s'", gotReq.Model)
	}
	if gotReq.ReasoningEffort != "medium" {
		t.Errorf("Expected reasoning_effort 'medium', got '%s'", gotReq.ReasoningEffort)
	}

	if len(gotReq.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != "You are terse." {
		t.Errorf("Expected stored system prompt first, got %+v", gotReq.Messages[0])
	}
	last := gotReq.Messages[2]
	if last.Role != "user" || last.Content != "What is the answer?" {
		t.Errorf("Expected prompt as last user message, got %+v", last)
	}
}

// Test CompleteChat - call credential overrides the configured key
func TestOpenAICompleteChat_CredentialOverride(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(&config.LLMConfig{
		OpenAIBaseURL: server.URL,
		OpenAIAPIKey:  "sk-config",
		OpenAIModel:   "o3-mini",
	})

	_, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{Credential: "sk-caller"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if gotAuth != "Bearer sk-caller" {
		t.Errorf("Expected caller credential, got '%s'", gotAuth)
	}
}

// Test CompleteChat - default system prompt when history has none
func TestOpenAICompleteChat_DefaultSystemPrompt(t *testing.T) {
	var gotReq openAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(&config.LLMConfig{
		OpenAIBaseURL: server.URL,
		OpenAIAPIKey:  "sk-test",
		OpenAIModel:   "o3-mini",
	})

	_, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(gotReq.Messages) == 0 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("Expected a system message first, got %+v", gotReq.Messages)
	}
	if gotReq.Messages[0].Content != "You are a helpful assistant" {
		t.Errorf("Expected default system prompt, got '%s'", gotReq.Messages[0].Content)
	}
}

// Test CompleteChat - no choices is a bad response
func TestOpenAICompleteChat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(&config.LLMConfig{
		OpenAIBaseURL: server.URL,
		OpenAIAPIKey:  "sk-test",
		OpenAIModel:   "o3-mini",
	})

	_, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if KindOf(err) != ErrBadResponse {
		t.Errorf("Expected bad response kind, got %v", KindOf(err))
	}
}
