package postgres

import (
	"database/sql"
	"errors"
	"time"

	"offgrid-chat/internal/logger"
	"offgrid-chat/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateConversation creates a new conversation, optionally seeding a
// system turn with the given prompt.
func (p *PostgresDB) CreateConversation(name string, systemPrompt string) (*db.Conversation, error) {
	convID := uuid.New().String()

	tx, err := p.conn.Begin()
	if err != nil {
		return nil, &db.StorageError{Op: "create conversation", Cause: err}
	}
	defer tx.Rollback()

	var createdAt, updatedAt time.Time
	query := `
	INSERT INTO conversations (id, name)
	VALUES ($1, $2)
	RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(query, convID, name).Scan(&createdAt, &updatedAt); err != nil {
		return nil, &db.StorageError{Op: "create conversation", Cause: err}
	}

	if systemPrompt != "" {
		turnQuery := `
		INSERT INTO turns (id, conversation_id, seq, role, content)
		VALUES ($1, $2, 1, $3, $4)
		`
		if _, err := tx.Exec(turnQuery, uuid.New().String(), convID, db.RoleSystem, systemPrompt); err != nil {
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
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// GetConversation retrieves a specific conversation
func (p *PostgresDB) GetConversation(convID string) (*db.Conversation, error) {
	var conv db.Conversation

	query := `
	SELECT id, name, created_at, updated_at
	FROM conversations
	WHERE id = $1
	`

	err := p.conn.QueryRow(query, convID).Scan(&conv.ID, &conv.Name, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, &db.StorageError{Op: "get conversation", Cause: err}
	}

	return &conv, nil
}

// AppendTurn appends a turn at the end of a conversation. The parent row
// is locked while the next sequence number is computed so concurrent
// appends cannot race on the same seq.
func (p *PostgresDB) AppendTurn(conversationID string, role string, content string, attachmentRef string) (*db.Turn, error) {
	if !db.ValidRole(role) {
		return nil, &db.StorageError{Op: "append turn", Cause: errors.New("invalid role: " + role)}
	}
	if content == "" && attachmentRef == "" {
		return nil, &db.StorageError{Op: "append turn", Cause: errors.New("turn has neither content nor attachment")}
	}

	tx, err := p.conn.Begin()
	if err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM conversations WHERE id = $1 FOR UPDATE`, conversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}

	var seq int64
	err = tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = $1`, conversationID).Scan(&seq)
	if err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}

	turnID := uuid.New().String()
	var createdAt time.Time

	query := `
	INSERT INTO turns (id, conversation_id, seq, role, content, attachment_ref)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at
	`
	if err := tx.QueryRow(query, turnID, conversationID, seq, role, content, attachmentRef).Scan(&createdAt); err != nil {
		return nil, &db.StorageError{Op: "append turn", Cause: err}
	}

	if _, err := tx.Exec(`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, conversationID); err != nil {
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
		CreatedAt:      createdAt,
	}, nil
}

// GetTurns retrieves all turns of a conversation in append order. An
// unknown conversation yields an empty slice, not an error.
func (p *PostgresDB) GetTurns(conversationID string) ([]db.Turn, error) {
	query := `
	SELECT id, conversation_id, seq, role, content, attachment_ref, created_at
	FROM turns
	WHERE conversation_id = $1
	ORDER BY seq ASC
	`

	rows, err := p.conn.Query(query, conversationID)
	if err != nil {
		return nil, &db.StorageError{Op: "get turns", Cause: err}
	}
	defer rows.Close()

	turns := []db.Turn{}
	for rows.Next() {
		var turn db.Turn
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Seq, &turn.Role, &turn.Content, &turn.AttachmentRef, &turn.CreatedAt); err != nil {
			return nil, &db.StorageError{Op: "get turns", Cause: err}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.StorageError{Op: "get turns", Cause: err}
	}

	return turns, nil
}

// ListConversations returns one summary per conversation, most recently
// active first.
func (p *PostgresDB) ListConversations() ([]db.ConversationSummary, error) {
	query := `
	SELECT c.id, c.name, c.updated_at,
	       (SELECT COUNT(*) FROM turns t WHERE t.conversation_id = c.id),
	       COALESCE((SELECT t.content FROM turns t
	                 WHERE t.conversation_id = c.id AND t.role = 'user'
	                 ORDER BY t.seq ASC LIMIT 1), '')
	FROM conversations c
	ORDER BY c.updated_at DESC
	`

	rows, err := p.conn.Query(query)
	if err != nil {
		return nil, &db.StorageError{Op: "list conversations", Cause: err}
	}
	defer rows.Close()

	summaries := []db.ConversationSummary{}
	for rows.Next() {
		var summary db.ConversationSummary
		var name, firstUser string
		if err := rows.Scan(&summary.ID, &name, &summary.LastActivityAt, &summary.TurnCount, &firstUser); err != nil {
			return nil, &db.StorageError{Op: "list conversations", Cause: err}
		}
		summary.DisplayName = db.DeriveDisplayName(name, firstUser)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.StorageError{Op: "list conversations", Cause: err}
	}

	return summaries, nil
}

// RenameConversation sets the explicit name of a conversation.
func (p *PostgresDB) RenameConversation(convID string, name string) error {
	res, err := p.conn.Exec(`UPDATE conversations SET name = $1 WHERE id = $2`, name, convID)
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
func (p *PostgresDB) DeleteConversation(convID string) (bool, error) {
	res, err := p.conn.Exec(`DELETE FROM conversations WHERE id = $1`, convID)
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
