package domain

import "time"

// User represents an application user.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          *string   `db:"email" json:"email,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	IsOnline       bool      `db:"is_online" json:"is_online"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

// Conversation represents a chat thread, either direct (exactly two
// participants) or group-backed. Its ID doubles as the routing-room key.
// DirectKey is set only on direct conversations and is unique per
// unordered user pair; the unique index on it is what stops two
// concurrent senders from creating duplicate direct conversations.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	IsGroup   bool      `db:"is_group" json:"is_group"`
	DirectKey *string   `db:"direct_key" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Group holds metadata owned 1:1 by a group conversation. The creator has
// elevated rights: only they may add or remove members.
type Group struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Description    *string   `db:"description" json:"description,omitempty"`
	Picture        *string   `db:"picture" json:"picture,omitempty"`
	CreatorID      int64     `db:"creator_id" json:"creator_id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// GroupSummary is a group plus its current member count.
type GroupSummary struct {
	Group
	ParticipantCount int `json:"participants_count"`
}

// Message is an immutable chat message. Ordering within a conversation is
// by CreatedAt, ties broken by ID (insertion order).
type Message struct {
	ID             int64     `db:"id" json:"id"`
	Content        string    `db:"content" json:"content"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	SenderID       int64     `db:"sender_id" json:"sender_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
