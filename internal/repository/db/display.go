package db

import "strings"

const displayNameLimit = 50

// DeriveDisplayName resolves the listing name for a conversation: an explicit
// name wins, otherwise the first user turn's content truncated for display.
func DeriveDisplayName(name, firstUserContent string) string {
	if name != "" {
		return name
	}
	content := strings.TrimSpace(firstUserContent)
	if content == "" {
		return "New conversation"
	}
	content = strings.ReplaceAll(content, "\n", " ")
	content = strings.ReplaceAll(content, "\r", "")
	runes := []rune(content)
	if len(runes) > displayNameLimit {
		return string(runes[:displayNameLimit-3]) + "..."
	}
	return content
}
