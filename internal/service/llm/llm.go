package llm

import (
	"context"

	"offgrid-chat/internal/config"
)

// FallbackResponse is returned to the user when a provider answers
// successfully but produces no usable text.
const FallbackResponse = "I apologize, but I couldn't generate a proper response. Please try again."

// defaultSystemPrompt is used when neither the call nor the stored
// history carries a system message.
const defaultSystemPrompt = "You are a helpful assistant"

// ProviderKind identifies a provider adapter.
type ProviderKind string

const (
	KindOllama    ProviderKind = "ollama"
	KindOpenAI    ProviderKind = "openai"
	KindReplicate ProviderKind = "replicate"
)

// KindFromString maps a user-supplied provider name to a ProviderKind.
// Unknown or empty names fall back to the local Ollama provider.
func KindFromString(s string) ProviderKind {
	switch ProviderKind(s) {
	case KindOpenAI:
		return KindOpenAI
	case KindReplicate:
		return KindReplicate
	default:
		return KindOllama
	}
}

// Message is a single turn in provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallConfig carries per-call overrides. Zero values mean "use the
// provider's configured default".
type CallConfig struct {
	// Credential overrides the configured API key or token.
	Credential string
	// Model overrides the configured model identifier.
	Model string
	// SystemPrompt overrides the system message sent to the provider.
	SystemPrompt string
	// Options are raw model parameters merged over the derived defaults.
	Options map[string]any
}

// Provider is a chat completion backend.
type Provider interface {
	// Name returns the provider's short name for logs and errors.
	Name() string

	// CompleteChat sends the prompt with conversation history and
	// returns the assistant's reply text.
	CompleteChat(ctx context.Context, prompt string, history []Message, cfg CallConfig) (string, error)
}

// NewProviders builds one adapter per supported kind from the LLM config.
func NewProviders(llmConfig *config.LLMConfig) map[ProviderKind]Provider {
	return map[ProviderKind]Provider{
		KindOllama:    NewOllamaProvider(llmConfig),
		KindOpenAI:    NewOpenAIProvider(llmConfig),
		KindReplicate: NewReplicateProvider(llmConfig),
	}
}

// extractSystemPrompt returns the first system message in history, or
// the package default when there is none, along with the history with
// all system messages removed.
func extractSystemPrompt(history []Message) (string, []Message) {
	systemPrompt := defaultSystemPrompt
	found := false

	rest := make([]Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == "system" {
			if !found {
				systemPrompt = msg.Content
				found = true
			}
			continue
		}
		rest = append(rest, msg)
	}

	return systemPrompt, rest
}
