package validation

import (
	"strings"
	"testing"
)

func TestValidateSubmit(t *testing.T) {
	v := NewChatRequestValidator()

	tests := []struct {
		name          string
		message       string
		hasAttachment bool
		wantErr       bool
	}{
		{"normal message", "hello", false, false},
		{"empty message", "", false, true},
		{"whitespace only", "   \n", false, true},
		{"empty with attachment", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSubmit(tt.message, tt.hasAttachment)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSubmit(%q, %v) error = %v, wantErr %v", tt.message, tt.hasAttachment, err, tt.wantErr)
			}
		})
	}
}

func TestValidateProvider(t *testing.T) {
	v := NewChatRequestValidator()

	for _, provider := range []string{"", "ollama", "openai", "replicate"} {
		if err := v.ValidateProvider(provider); err != nil {
			t.Errorf("Expected provider %q to be valid, got: %v", provider, err)
		}
	}

	if err := v.ValidateProvider("huggingface"); err == nil {
		t.Error("Expected unknown provider to be rejected")
	}
}

func TestValidateTemperature(t *testing.T) {
	v := NewChatRequestValidator()

	if err := v.ValidateTemperature(nil); err != nil {
		t.Errorf("Expected nil temperature to be valid, got: %v", err)
	}

	valid := 1.2
	if err := v.ValidateTemperature(&valid); err != nil {
		t.Errorf("Expected 1.2 to be valid, got: %v", err)
	}

	tooHigh := 2.5
	if err := v.ValidateTemperature(&tooHigh); err == nil {
		t.Error("Expected 2.5 to be rejected")
	}

	negative := -0.1
	if err := v.ValidateTemperature(&negative); err == nil {
		t.Error("Expected -0.1 to be rejected")
	}
}

func TestValidateAttachmentExt(t *testing.T) {
	v := NewChatRequestValidator()

	for _, ext := range []string{"", "jpg", "jpeg", "png", ".PNG", "JPG"} {
		if err := v.ValidateAttachmentExt(ext); err != nil {
			t.Errorf("Expected extension %q to be valid, got: %v", ext, err)
		}
	}

	for _, ext := range []string{"gif", "exe", "svg"} {
		if err := v.ValidateAttachmentExt(ext); err == nil {
			t.Errorf("Expected extension %q to be rejected", ext)
		}
	}
}

func TestValidateConversationName(t *testing.T) {
	v := NewChatRequestValidator()

	if err := v.ValidateConversationName(""); err != nil {
		t.Errorf("Expected empty name to be valid, got: %v", err)
	}

	if err := v.ValidateConversationName(strings.Repeat("a", 100)); err != nil {
		t.Errorf("Expected 100-rune name to be valid, got: %v", err)
	}

	if err := v.ValidateConversationName(strings.Repeat("a", 101)); err == nil {
		t.Error("Expected 101-rune name to be rejected")
	}

	// Rune count, not byte count
	if err := v.ValidateConversationName(strings.Repeat("日", 100)); err != nil {
		t.Errorf("Expected 100-rune multibyte name to be valid, got: %v", err)
	}
}

func TestValidateChatRequest(t *testing.T) {
	v := NewChatRequestValidator()

	if err := v.ValidateChatRequest("hello", false, "ollama", nil, ""); err != nil {
		t.Errorf("Expected valid request, got: %v", err)
	}

	if err := v.ValidateChatRequest("", false, "ollama", nil, ""); err == nil {
		t.Error("Expected empty message to fail")
	}

	if err := v.ValidateChatRequest("hello", false, "bad", nil, ""); err == nil {
		t.Error("Expected bad provider to fail")
	}

	tooHot := 3.0
	if err := v.ValidateChatRequest("hello", false, "ollama", &tooHot, ""); err == nil {
		t.Error("Expected out-of-range temperature to fail")
	}

	if err := v.ValidateChatRequest("hello", true, "ollama", nil, "bmp"); err == nil {
		t.Error("Expected bad attachment extension to fail")
	}
}
