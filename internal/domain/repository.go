package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListActive(ctx context.Context, offset, limit int) ([]*User, error)
	ListOnline(ctx context.Context) ([]*User, error)
	SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
	// ResolveDirect returns the direct conversation for the unordered user
	// pair, creating it (plus both participant rows) atomically when it
	// does not exist yet. The boolean reports whether a new conversation
	// was created. Concurrent calls for the same pair must converge on a
	// single conversation.
	ResolveDirect(ctx context.Context, userA, userB int64) (*Conversation, bool, error)
	Touch(ctx context.Context, id int64) error
}

// GroupRepository defines persistence operations for groups.
type GroupRepository interface {
	// Create inserts the backing conversation, the group row, and the
	// creator's participant row in a single transaction. A failure leaves
	// no partial rows behind.
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id int64) (*Group, error)
	ListForUser(ctx context.Context, userID int64) ([]*Group, error)
	ListCreatedBy(ctx context.Context, creatorID int64) ([]*GroupSummary, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	CountForConversation(ctx context.Context, conversationID int64) (int, error)
}

// ParticipantRepository defines operations around conversation membership.
type ParticipantRepository interface {
	ListParticipants(ctx context.Context, conversationID int64) ([]*User, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	ListConversationIDs(ctx context.Context, userID int64) ([]int64, error)
	Add(ctx context.Context, conversationID, userID int64) error
	Remove(ctx context.Context, conversationID, userID int64) error
}
