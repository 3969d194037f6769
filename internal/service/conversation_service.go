package service

import (
	"context"
	"fmt"

	"chatserver/internal/domain"
)

// ConversationService resolves conversations to stable identifiers and
// answers membership queries for the router and the HTTP surface.
type ConversationService struct {
	conversations domain.ConversationRepository
	groups        domain.GroupRepository
	participants  domain.ParticipantRepository
}

func NewConversationService(
	conversations domain.ConversationRepository,
	groups domain.GroupRepository,
	participants domain.ParticipantRepository,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		groups:        groups,
		participants:  participants,
	}
}

// ResolveDirect returns the direct conversation between the two users,
// creating it lazily. Safe under concurrent calls for the same pair.
func (s *ConversationService) ResolveDirect(ctx context.Context, userA, userB int64) (*domain.Conversation, bool, error) {
	if userA == userB {
		return nil, false, domain.ErrInvalidInput
	}
	conv, created, err := s.conversations.ResolveDirect(ctx, userA, userB)
	if err != nil {
		return nil, false, fmt.Errorf("resolve direct conversation: %w", err)
	}
	return conv, created, nil
}

// ResolveGroupConversation maps a group to its backing conversation.
func (s *ConversationService) ResolveGroupConversation(ctx context.Context, groupID int64) (*domain.Conversation, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, domain.ErrNotFound
	}
	conv, err := s.conversations.GetByID(ctx, group.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}

// ConversationIDsForUser feeds initial room subscriptions on connect.
func (s *ConversationService) ConversationIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return s.participants.ListConversationIDs(ctx, userID)
}

func (s *ConversationService) GetConversation(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, domain.ErrForbidden
	}
	return conv, nil
}
