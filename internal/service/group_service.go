package service

import (
	"context"
	"fmt"

	"chatserver/internal/domain"
)

// GroupService owns group lifecycle and membership. The creator of a
// group is the only user allowed to add or remove members.
type GroupService struct {
	groups       domain.GroupRepository
	participants domain.ParticipantRepository
	users        domain.UserRepository
}

func NewGroupService(
	groups domain.GroupRepository,
	participants domain.ParticipantRepository,
	users domain.UserRepository,
) *GroupService {
	return &GroupService{
		groups:       groups,
		participants: participants,
		users:        users,
	}
}

type GroupCreateInput struct {
	Name        string
	Description *string
	CreatorID   int64
}

// Create creates the conversation, the group, and the creator's
// membership as one atomic unit.
func (s *GroupService) Create(ctx context.Context, in GroupCreateInput) (*domain.Group, error) {
	if in.Name == "" {
		return nil, domain.ErrInvalidInput
	}

	creator, err := s.users.GetByID(ctx, in.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}
	if creator == nil {
		return nil, domain.ErrNotFound
	}

	group := &domain.Group{
		Name:        in.Name,
		Description: in.Description,
		CreatorID:   in.CreatorID,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

func (s *GroupService) GetByID(ctx context.Context, groupID int64) (*domain.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, domain.ErrNotFound
	}
	return group, nil
}

// AddUser adds userID to the group's conversation. Only the creator may
// do this; a duplicate membership surfaces as ErrConflict.
func (s *GroupService) AddUser(ctx context.Context, groupID, userID, actorID int64) (*domain.Group, *domain.User, error) {
	group, user, err := s.authorizeMembershipChange(ctx, groupID, userID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.participants.Add(ctx, group.ConversationID, userID); err != nil {
		return nil, nil, err
	}
	return group, user, nil
}

// RemoveUser deletes userID's membership row. Only the creator may do
// this. The caller is responsible for evicting the user's live room
// subscriptions.
func (s *GroupService) RemoveUser(ctx context.Context, groupID, userID, actorID int64) (*domain.Group, *domain.User, error) {
	group, user, err := s.authorizeMembershipChange(ctx, groupID, userID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.participants.Remove(ctx, group.ConversationID, userID); err != nil {
		return nil, nil, err
	}
	return group, user, nil
}

func (s *GroupService) authorizeMembershipChange(ctx context.Context, groupID, userID, actorID int64) (*domain.Group, *domain.User, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, nil, domain.ErrNotFound
	}
	if group.CreatorID != actorID {
		return nil, nil, domain.ErrForbidden
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, nil, domain.ErrNotFound
	}
	return group, user, nil
}

// GroupDetail is a group together with its current members.
type GroupDetail struct {
	Group *domain.Group  `json:"group"`
	Users []*domain.User `json:"users"`
}

// Detail returns the group and its members; the requester must be one of
// them.
func (s *GroupService) Detail(ctx context.Context, groupID, userID int64) (*GroupDetail, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, domain.ErrNotFound
	}
	isMember, err := s.participants.IsParticipant(ctx, group.ConversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return nil, domain.ErrForbidden
	}
	users, err := s.participants.ListParticipants(ctx, group.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return &GroupDetail{Group: group, Users: users}, nil
}

func (s *GroupService) ListForUser(ctx context.Context, userID int64) ([]*domain.Group, error) {
	return s.groups.ListForUser(ctx, userID)
}

func (s *GroupService) ListCreatedBy(ctx context.Context, creatorID int64) ([]*domain.GroupSummary, error) {
	return s.groups.ListCreatedBy(ctx, creatorID)
}
