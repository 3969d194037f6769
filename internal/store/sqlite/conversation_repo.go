package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"chatserver/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationColumns = `id, name, is_group, direct_key, created_at, updated_at`

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	return r.scanConversation(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = ?
	`, id)
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	query := `
		SELECT c.id, c.name, c.is_group, c.direct_key, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = ?
		ORDER BY c.updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(&c.ID, &c.Name, &c.IsGroup, &c.DirectKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ResolveDirect finds the direct conversation for the unordered pair,
// creating it together with both participant rows when absent. A losing
// racer hits the unique index on direct_key; in that case the winner's
// row is re-queried and returned instead of failing the caller.
func (r *ConversationRepo) ResolveDirect(ctx context.Context, userA, userB int64) (*domain.Conversation, bool, error) {
	key := directKey(userA, userB)

	conv, err := r.getByDirectKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if conv != nil {
		return conv, false, nil
	}

	conv, err = r.createDirect(ctx, key, userA, userB)
	if err == nil {
		return conv, true, nil
	}
	if isUniqueViolation(err) {
		winner, qerr := r.getByDirectKey(ctx, key)
		if qerr != nil {
			return nil, false, qerr
		}
		if winner != nil {
			return winner, false, nil
		}
	}
	return nil, false, err
}

func (r *ConversationRepo) createDirect(ctx context.Context, key string, userA, userB int64) (*domain.Conversation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (is_group, direct_key, created_at, updated_at)
		VALUES (0, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, key)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, uid := range []int64{userA, userB} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (user_id, conversation_id, joined_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
		`, uid, id); err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *ConversationRepo) getByDirectKey(ctx context.Context, key string) (*domain.Conversation, error) {
	return r.scanConversation(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE direct_key = ?
	`, key)
}

// Touch bumps updated_at so conversation listings sort by recent activity.
func (r *ConversationRepo) Touch(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) scanConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID,
		&c.Name,
		&c.IsGroup,
		&c.DirectKey,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func directKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
