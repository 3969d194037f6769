package ws

import "time"

// Inbound event names.
const (
	EventMessage             = "message"
	EventPrivateMessage      = "private-message"
	EventGroupMessage        = "group-message"
	EventTyping              = "typing"
	EventCreateGroup         = "create-group"
	EventAddUserToGroup      = "add-user-to-group"
	EventRemoveUserFromGroup = "remove-user-from-group"
)

// Outbound event names.
const (
	EventUsers                 = "users"
	EventReceiveMessage        = "receive-message"
	EventReceivePrivateMessage = "receive-private-message"
	EventReceiveGroupMessage   = "receive-group-message"
	EventPrivateMessageError   = "private-message-error"
	EventGroupMessageError     = "group-message-error"
	EventTokenExpired          = "token-expired"
	EventGroupCreated          = "group-created"
	EventUserAddedToGroup      = "user-added-to-group"
	EventUserRemovedFromGroup  = "user-removed-from-group"
	EventError                 = "error"
)

// envelope carries only the event name; handlers decode the full payload
// themselves.
type envelope struct {
	Type string `json:"type"`
}

// The `from` field is accepted for display compatibility but never
// trusted: sender identity always comes from the authenticated
// connection.
type chatPayload struct {
	From    string     `json:"from"`
	To      string     `json:"to" validate:"required"`
	Message string     `json:"message" validate:"required,max=5000"`
	SendOn  *time.Time `json:"send_on"`
}

// broadcastPayload has no recipient precondition; `to` is display-only.
type broadcastPayload struct {
	From    string     `json:"from"`
	To      string     `json:"to"`
	Message string     `json:"message" validate:"required,max=5000"`
	SendOn  *time.Time `json:"send_on"`
}

type groupMessagePayload struct {
	To      int64      `json:"to" validate:"required,gt=0"`
	Message string     `json:"message" validate:"required,max=5000"`
	SendOn  *time.Time `json:"send_on"`
}

type typingPayload struct {
	IsTyping bool `json:"isTyping"`
}

type createGroupPayload struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description"`
	CreatorID   int64   `json:"creatorId"`
}

type groupMembershipPayload struct {
	GroupID int64 `json:"groupId" validate:"required,gt=0"`
	UserID  int64 `json:"userId" validate:"required,gt=0"`
}
