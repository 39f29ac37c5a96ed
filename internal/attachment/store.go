package attachment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"offgrid-chat/internal/logger"

	"github.com/sirupsen/logrus"
)

// Store writes turn attachments to disk, grouped per conversation.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on
// first write, not here.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes data under the conversation's subdirectory and returns the
// reference to persist alongside the turn. The filename is a nanosecond
// timestamp so files never collide within a conversation.
func (s *Store) Save(conversationID string, data []byte, ext string) (string, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")

	convDir := filepath.Join(s.dir, conversationID)
	if err := os.MkdirAll(convDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating attachment directory: %w", err)
	}

	name := fmt.Sprintf("%d.%s", time.Now().UnixNano(), ext)
	path := filepath.Join(convDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("error writing attachment: %w", err)
	}

	ref := filepath.ToSlash(filepath.Join(conversationID, name))

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"ref":             ref,
		"size":            len(data),
	}).Info("Saved attachment")

	return ref, nil
}

// Path resolves a stored reference back to a filesystem path. References
// that escape the store root are rejected.
func (s *Store) Path(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid attachment reference: %s", ref)
	}
	return filepath.Join(s.dir, clean), nil
}
