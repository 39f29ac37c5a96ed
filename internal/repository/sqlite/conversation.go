package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"offgrid-chat/internal/logger"
	"offgrid-chat/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateConversation creates a new conversation. When systemPrompt is
// non-empty the conversation starts with a seeded system turn so the
// assistant persona survives restarts.
func (s *SQLiteDB) CreateConversation(name string, systemPrompt string) (*db.Conversation, error) {
	convID := uuid.New().String()
	now := time.Now()

	tx, err := s.conn.Begin()
	if err != nil {
		return nil, &db.StorageError{Op: "create conversation", Cause: err}
	}
	defer tx.Rollback()

	query := `
	INSERT INTO conversations (id, name, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, convID, name, now.UnixNano(), now.UnixNano()); err != nil {
		return nil, &db.StorageError{Op: "create conversation", Cause: err}
	}

	if systemPrompt != "" {
		turnQuery := `
		INSERT INTO turns (id, conversation_id, seq, role, content, attachment_ref, created_at)
		VALUES (?, ?, 1, ?, ?, '', ?)
		`
		if _, err := tx.Exec(turnQuery, uuid.New().String(), convID, db.RoleSystem, systemPrompt, now.UnixNano()); err != nil {
			return nil, &db.StorageError{Op: "seed system turn", Cause: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &db.StorageError{Op: "create conversation", Cause: err}
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": convID, "name": name}).Info("Created new conversation")

	return &db.Conversation{
		ID:        convID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation retrieves a specific conversation
func (s *SQLiteDB) GetConversation(convID string) (*db.Conversation, error) {
	var conv db.Conversation
	var createdAt, updatedAt int64

	query := `
	SELECT id, name, created_at, updated_at
	FROM conversations
	WHERE id = ?
	`

	err := s.conn.QueryRow(query, convID).Scan(&conv.ID, &conv.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, &db.StorageError{Op: "get conversation", Cause: err}
	}

	conv.CreatedAt = time.Unix(0, createdAt)
	conv.UpdatedAt = time.Unix(0, updatedAt)
	return &conv, nil
}

// AppendTurn appends a turn at the end of a conversation. The sequence
// number is assigned inside the insert transaction so readers always see
// a gapless, strictly increasing order per conversation.
func (s *SQLiteDB) AppendTurn(conversationID string, role string, content string, attachmentRef string) (*db.Turn, error) {
	if !db.ValidRole(role) {
		return nil, &db.StorageError{Op: "append turn", Cause: errors.New("invalid role: " + role)}
	}
	if content == "" && attachmentRef == "" {
		return nil, &db.StorageError{Op: "append turn", Cause: errors.New("turn has neither content nor attachment")}
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}

	var seq int64
	err = tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = ?`, conversationID).Scan(&seq)
	if err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}

	turnID := uuid.New().String()
	now := time.Now()

	query := `
	INSERT INTO turns (id, conversation_id, seq, role, content, attachment_ref, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, turnID, conversationID, seq, role, content, attachmentRef, now.UnixNano()); err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}

	if _, err := tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, now.UnixNano(), conversationID); err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"role":            role,
		"seq":             seq,
	}).Debug("Appended turn to conversation")

	return &db.Turn{
		ID:             turnID,
		ConversationID: conversationID,
		Seq:            seq,
		Role:           role,
		Content:        content,
		AttachmentRef:  attachmentRef,
		CreatedAt:      now,
	}, nil
}

// GetTurns retrieves all turns of a conversation in append order. An
// unknown conversation yields an empty slice, not an error.
func (s *SQLiteDB) GetTurns(conversationID string) ([]db.Turn, error) {
	query := `
	SELECT id, conversation_id, seq, role, content, attachment_ref, created_at
	FROM turns
	WHERE conversation_id = ?
	ORDER BY seq ASC
	`

	rows, err := s.conn.Query(query, conversationID)
	if err != nil {
		return nil, &db.StorageError{Op: "get turns", Cause: err}
	}
	defer rows.Close()

	turns := []db.Turn{}
	for rows.Next() {
		var turn db.Turn
		var createdAt int64
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Seq, &turn.Role, &turn.Content, &turn.AttachmentRef, &createdAt); err != nil {
			return nil, &db.StorageError{Op: "get turns", Cause: err}
		}
		turn.CreatedAt = time.Unix(0, createdAt)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.StorageError{Op: "get turns", Cause: err}
	}

	return turns, nil
}

// ListConversations returns one summary per conversation, most recently
// active first. The display name falls back to the first user turn when
// the conversation was never named.
func (s *SQLiteDB) ListConversations() ([]db.ConversationSummary, error) {
	query := `
	SELECT c.id, c.name, c.updated_at,
	       (SELECT COUNT(*) FROM turns t WHERE t.conversation_id = c.id),
	       COALESCE((SELECT t.content FROM turns t
	                 WHERE t.conversation_id = c.id AND t.role = 'user'
	                 ORDER BY t.seq ASC LIMIT 1), '')
	FROM conversations c
	ORDER BY c.updated_at DESC
	`

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, &db.StorageError{Op: "list conversations", Cause: err}
	}
	defer rows.Close()

	summaries := []db.ConversationSummary{}
	for rows.Next() {
		var summary db.ConversationSummary
		var name, firstUser string
		var updatedAt int64
		if err := rows.Scan(&summary.ID, &name, &updatedAt, &summary.TurnCount, &firstUser); err != nil {
			return nil, &db.StorageError{Op: "list conversations", Cause: err}
		}
		summary.DisplayName = db.DeriveDisplayName(name, firstUser)
		summary.LastActivityAt = time.Unix(0, updatedAt)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.StorageError{Op: "list conversations", Cause: err}
	}

	return summaries, nil
}

// RenameConversation sets the explicit name of a conversation. Renaming
// does not count as activity, so updated_at stays put.
func (s *SQLiteDB) RenameConversation(convID string, name string) error {
	res, err := s.conn.Exec(`UPDATE conversations SET name = ? WHERE id = ?`, name, convID)
	if err != nil {
		return &db.StorageError{Op: "rename conversation", Cause: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &db.StorageError{Op: "rename conversation", Cause: err}
	}
	if affected == 0 {
		return db.ErrNotFound
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": convID, "name": name}).Info("Renamed conversation")
	return nil
}

// DeleteConversation deletes a conversation and all its turns. It reports
// whether a conversation was actually removed.
func (s *SQLiteDB) DeleteConversation(convID string) (bool, error) {
	res, err := s.conn.Exec(`DELETE FROM conversations WHERE id = ?`, convID)
	if err != nil {
		return false, &db.StorageError{Op: "delete conversation", Cause: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, &db.StorageError{Op: "delete conversation", Cause: err}
	}
	if affected == 0 {
		return false, nil
	}

	logger.Log.WithField("conversation_id", convID).Info("Deleted conversation")
	return true, nil
}
