package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatserver/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

// Create inserts the message and fills in its ID and creation time, so
// callers can emit the persisted timestamp without a read-back.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	createdAt := time.Now().UTC()
	query := `
		INSERT INTO messages (content, conversation_id, sender_id, created_at)
		VALUES (?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query, m.Content, m.ConversationID, m.SenderID, createdAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = createdAt
	return nil
}

// ListForConversation returns the most recent messages in chronological
// order (created_at, then insertion order).
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, content, conversation_id, sender_id, created_at
		FROM (
			SELECT id, content, conversation_id, sender_id, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(&m.ID, &m.Content, &m.ConversationID, &m.SenderID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) CountForConversation(ctx context.Context, conversationID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE conversation_id = ?
	`, conversationID).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
