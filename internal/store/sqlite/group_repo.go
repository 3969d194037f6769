package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"chatserver/internal/domain"
)

type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

var _ domain.GroupRepository = (*GroupRepo)(nil)

const groupColumns = `id, name, description, picture, creator_id, conversation_id, created_at`

// Create inserts the backing conversation, the group row, and the
// creator's participant row in one transaction. Any failure rolls the
// whole thing back; a group must never exist without its conversation or
// without the creator as a member.
func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (name, is_group, created_at, updated_at)
		VALUES (?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, g.Name)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	convID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO groups (name, description, picture, creator_id, conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, g.Name, g.Description, g.Picture, g.CreatorID, convID)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	groupID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_participants (user_id, conversation_id, joined_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`, g.CreatorID, convID); err != nil {
		return fmt.Errorf("insert creator participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	g.ID = groupID
	g.ConversationID = convID
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	g := &domain.Group{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE id = ?
	`, id).Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.Picture,
		&g.CreatorID,
		&g.ConversationID,
		&g.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// ListForUser returns groups whose conversation the user participates in.
func (r *GroupRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.picture, g.creator_id, g.conversation_id, g.created_at
		FROM groups g
		JOIN conversation_participants cp ON cp.conversation_id = g.conversation_id
		WHERE cp.user_id = ?
		ORDER BY g.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var res []*domain.Group
	for rows.Next() {
		g := &domain.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Picture, &g.CreatorID, &g.ConversationID, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// ListCreatedBy returns groups created by the user with member counts.
func (r *GroupRepo) ListCreatedBy(ctx context.Context, creatorID int64) ([]*domain.GroupSummary, error) {
	query := `
		SELECT g.id, g.name, g.description, g.picture, g.creator_id, g.conversation_id, g.created_at,
			(SELECT COUNT(*) FROM conversation_participants cp WHERE cp.conversation_id = g.conversation_id)
		FROM groups g
		WHERE g.creator_id = ?
		ORDER BY g.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list created groups: %w", err)
	}
	defer rows.Close()

	var res []*domain.GroupSummary
	for rows.Next() {
		s := &domain.GroupSummary{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Picture, &s.CreatorID, &s.ConversationID, &s.CreatedAt, &s.ParticipantCount); err != nil {
			return nil, fmt.Errorf("scan group summary: %w", err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
