package validation

import (
	"errors"
	"fmt"
	"strings"
)

// validAttachmentExts lists the file extensions accepted for turn
// attachments.
var validAttachmentExts = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// ChatRequestValidator validates chat-related requests
type ChatRequestValidator struct{}

// NewChatRequestValidator creates a new ChatRequestValidator
func NewChatRequestValidator() *ChatRequestValidator {
	return &ChatRequestValidator{}
}

// ValidateSubmit validates a message submission. A message may be empty
// only when it carries an attachment.
func (v *ChatRequestValidator) ValidateSubmit(message string, hasAttachment bool) error {
	if strings.TrimSpace(message) == "" && !hasAttachment {
		return errors.New("message cannot be empty")
	}
	return nil
}

// ValidateProvider validates the provider name. Empty means the default
// provider.
func (v *ChatRequestValidator) ValidateProvider(provider string) error {
	if provider == "" {
		return nil
	}

	validProviders := map[string]bool{
		"ollama":    true,
		"openai":    true,
		"replicate": true,
	}

	if !validProviders[provider] {
		return fmt.Errorf("provider must be one of: ollama, openai, replicate; got %s", provider)
	}
	return nil
}

// ValidateTemperature validates the temperature parameter
func (v *ChatRequestValidator) ValidateTemperature(temperature *float64) error {
	if temperature == nil {
		return nil // Temperature is optional
	}

	if *temperature < 0 || *temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %.2f", *temperature)
	}
	return nil
}

// ValidateAttachmentExt validates an attachment file extension
func (v *ChatRequestValidator) ValidateAttachmentExt(ext string) error {
	if ext == "" {
		return nil // No attachment
	}

	normalized := strings.TrimPrefix(strings.ToLower(ext), ".")
	if !validAttachmentExts[normalized] {
		return fmt.Errorf("attachment extension must be one of: jpg, jpeg, png; got %s", ext)
	}
	return nil
}

// ValidateConversationName validates a conversation name
func (v *ChatRequestValidator) ValidateConversationName(name string) error {
	if len([]rune(name)) > 100 {
		return fmt.Errorf("conversation name must be at most 100 characters, got %d", len([]rune(name)))
	}
	return nil
}

// ValidateChatRequest validates a complete chat request
func (v *ChatRequestValidator) ValidateChatRequest(message string, hasAttachment bool, provider string, temperature *float64, attachmentExt string) error {
	if err := v.ValidateSubmit(message, hasAttachment); err != nil {
		return err
	}

	if err := v.ValidateProvider(provider); err != nil {
		return err
	}

	if err := v.ValidateTemperature(temperature); err != nil {
		return err
	}

	if err := v.ValidateAttachmentExt(attachmentExt); err != nil {
		return err
	}

	return nil
}
