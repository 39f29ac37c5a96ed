package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"offgrid-chat/internal/config"
)

func newOllamaTestProvider(endpoint string) *OllamaProvider {
	return NewOllamaProvider(&config.LLMConfig{
		OllamaEndpoint: endpoint,
		OllamaModel:    "test-model",
	})
}

// Test CompleteChat - success returns the trimmed reply
func TestOllamaCompleteChat_Success(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "  Hi there!  \n"},
		})
	}))
	defer server.Close()

	provider := newOllamaTestProvider(server.URL)

	history := []Message{
		{Role: "user", Content: "Earlier question"},
		{Role: "assistant", Content: "Earlier answer"},
	}

	result, err := provider.CompleteChat(context.Background(), "Hello", history, CallConfig{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "Hi there!" {
		t.Errorf("Expected trimmed reply 'Hi there!', got '%s'", result)
	}

	if gotReq.Model != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("Expected stream to be false")
	}
	if len(gotReq.Messages) != 3 {
		t.Fatalf("Expected 3 messages (history + prompt), got %d", len(gotReq.Messages))
	}
	last := gotReq.Messages[2]
	if last.Role != "user" || last.Content != "Hello" {
		t.Errorf("Expected prompt as last user message, got %+v", last)
	}
}

// Test CompleteChat - empty prompt is sent as a greeting
func TestOllamaCompleteChat_EmptyPromptBecomesGreeting(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "Hello!"},
		})
	}))
	defer server.Close()

	provider := newOllamaTestProvider(server.URL)

	_, err := provider.CompleteChat(context.Background(), "   ", nil, CallConfig{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "Hello" {
		t.Errorf("Expected empty prompt to be replaced with 'Hello', got %+v", gotReq.Messages)
	}
}

// Test CompleteChat - empty reply falls back to the apology
func TestOllamaCompleteChat_EmptyReplyFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "   "},
		})
	}))
	defer server.Close()

	provider := newOllamaTestProvider(server.URL)

	result, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != FallbackResponse {
		t.Errorf("Expected fallback response, got '%s'", result)
	}
}

// Test CompleteChat - unreachable endpoint is classified
func TestOllamaCompleteChat_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	provider := newOllamaTestProvider(server.URL)

	_, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if KindOf(err) != ErrUnreachable {
		t.Errorf("Expected unreachable kind, got %v", KindOf(err))
	}
	if !strings.Contains(err.Error(), "server not running at "+server.URL) {
		t.Errorf("Expected endpoint in error message, got: %v", err)
	}
}

// Test CompleteChat - server error status is classified as unreachable
func TestOllamaCompleteChat_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := newOllamaTestProvider(server.URL)

	_, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if KindOf(err) != ErrUnreachable {
		t.Errorf("Expected unreachable kind, got %v", KindOf(err))
	}
}

// Test CompleteChat - malformed payloads are classified as bad response
func TestOllamaCompleteChat_BadResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not json at all"},
		{"missing message field", `{"model": "test-model"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := newOllamaTestProvider(server.URL)

			_, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if KindOf(err) != ErrBadResponse {
				t.Errorf("Expected bad response kind, got %v", KindOf(err))
			}
		})
	}
}

// Test CompleteChat - model override from call config wins
func TestOllamaCompleteChat_ModelOverride(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "ok"},
		})
	}))
	defer server.Close()

	provider := newOllamaTestProvider(server.URL)

	_, err := provider.CompleteChat(context.Background(), "Hello", nil, CallConfig{Model: "other-model"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if gotReq.Model != "other-model" {
		t.Errorf("Expected model override 'other-model', got '%s'", gotReq.Model)
	}
}
