package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"chatserver/internal/domain"
)

const maxContentRunes = 5000

// MessageService persists messages and answers fan-out target queries.
// Messages are immutable: created once, never updated.
type MessageService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
}

func NewMessageService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
) *MessageService {
	return &MessageService{
		conversations: conversations,
		participants:  participants,
		messages:      messages,
	}
}

// Send persists a message from senderID into the conversation. The
// sender must be a participant; this is checked against the store, not
// against transport room state.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID int64, content string) (*domain.Message, error) {
	if content == "" || len([]rune(content)) > maxContentRunes {
		return nil, domain.ErrInvalidInput
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}

	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, domain.ErrForbidden
	}

	msg := &domain.Message{
		Content:        content,
		ConversationID: conversationID,
		SenderID:       senderID,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if err := s.conversations.Touch(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return msg, nil
}

// ListForConversation returns recent messages in chronological order for
// a participant of the conversation.
func (s *MessageService) ListForConversation(ctx context.Context, conversationID, userID int64, limit int) ([]*domain.Message, error) {
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, domain.ErrForbidden
	}
	return s.messages.ListForConversation(ctx, conversationID, limit)
}

// ParticipantIDs returns the user IDs subscribed to a conversation, used
// to fix up live room membership before fan-out.
func (s *MessageService) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	users, err := s.participants.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u *domain.User, _ int) int64 { return u.ID }), nil
}
