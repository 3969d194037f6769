package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chatserver/internal/domain"
	"chatserver/internal/metrics"
	"chatserver/internal/service"
)

// Router is the per-event state machine: it authenticates the sender
// from the connection, resolves routing targets against the store,
// persists, and fans out. All transitions are single-event; the only
// cross-event state lives in the hub.
type Router struct {
	hub      *Hub
	users    *service.UserService
	convs    *service.ConversationService
	groups   *service.GroupService
	msgs     *service.MessageService
	validate *validator.Validate
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics

	handlers map[string]func(ctx context.Context, c *Client, raw []byte)
}

func NewRouter(
	hub *Hub,
	users *service.UserService,
	convs *service.ConversationService,
	groups *service.GroupService,
	msgs *service.MessageService,
	timeout time.Duration,
	log *zap.Logger,
	m *metrics.Metrics,
) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &Router{
		hub:      hub,
		users:    users,
		convs:    convs,
		groups:   groups,
		msgs:     msgs,
		validate: validator.New(),
		timeout:  timeout,
		log:      log,
		metrics:  m,
	}
	r.handlers = map[string]func(ctx context.Context, c *Client, raw []byte){
		EventMessage:             r.handleBroadcastMessage,
		EventPrivateMessage:      r.handlePrivateMessage,
		EventGroupMessage:        r.handleGroupMessage,
		EventTyping:              r.handleTyping,
		EventCreateGroup:         r.handleCreateGroup,
		EventAddUserToGroup:      r.handleAddUserToGroup,
		EventRemoveUserFromGroup: r.handleRemoveUserFromGroup,
	}
	return r
}

// Dispatch routes one raw inbound frame to its handler. Unknown event
// types are logged and dropped; they never crash the connection.
func (r *Router) Dispatch(c *Client, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.metrics.RecordRejected()
		r.sendError(c, EventError, "malformed event payload")
		return
	}
	handler, ok := r.handlers[env.Type]
	if !ok {
		r.log.Debug("unknown event type", zap.String("type", env.Type), zap.String("user", c.Username))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	handler(ctx, c, raw)
}

// HandleConnect establishes presence and initial room membership for an
// authenticated connection, then broadcasts the new online snapshot.
func (r *Router) HandleConnect(ctx context.Context, c *Client) error {
	if err := r.users.SetOnlineStatus(ctx, c.UserID, true); err != nil {
		r.log.Warn("set online failed", zap.Int64("user_id", c.UserID), zap.Error(err))
	}
	r.hub.Register(c)

	ids, err := r.convs.ConversationIDsForUser(ctx, c.UserID)
	if err != nil {
		r.hub.Unregister(c.ID)
		return err
	}
	for _, id := range ids {
		r.hub.Join(c.ID, id)
	}

	r.BroadcastPresence()
	return nil
}

// HandleDisconnect tears down presence for a connection and broadcasts
// the updated snapshot. Safe to call for connections that never fully
// registered.
func (r *Router) HandleDisconnect(ctx context.Context, c *Client) {
	r.hub.Unregister(c.ID)
	if !r.hub.IsOnline(c.UserID) {
		if err := r.users.SetOnlineStatus(ctx, c.UserID, false); err != nil {
			r.log.Warn("set offline failed", zap.Int64("user_id", c.UserID), zap.Error(err))
		}
	}
	r.BroadcastPresence()
}

// BroadcastPresence pushes the current online-user snapshot to everyone.
func (r *Router) BroadcastPresence() {
	r.hub.EmitToAll(map[string]any{
		"type":  EventUsers,
		"users": r.hub.OnlineUsernames(),
	})
}

// handleBroadcastMessage is the ephemeral public channel: no room, no
// persistence, delivered to every connection.
func (r *Router) handleBroadcastMessage(ctx context.Context, c *Client, raw []byte) {
	var p broadcastPayload
	if !r.decode(c, EventError, raw, &p) {
		return
	}
	r.metrics.RecordRouted(EventMessage)
	r.hub.EmitToAll(map[string]any{
		"type":    EventReceiveMessage,
		"from":    c.Username,
		"to":      p.To,
		"message": p.Message,
		"send_on": sendOn(p.SendOn),
	})
}

func (r *Router) handlePrivateMessage(ctx context.Context, c *Client, raw []byte) {
	var p chatPayload
	if !r.decode(c, EventPrivateMessageError, raw, &p) {
		return
	}

	recipient, err := r.users.GetByUsername(ctx, p.To)
	if err != nil {
		r.fail(c, EventPrivateMessageError, "failed to resolve recipient", err)
		return
	}
	if recipient == nil {
		r.metrics.RecordRejected()
		r.sendError(c, EventPrivateMessageError, "Recipient not found")
		return
	}

	conv, created, err := r.convs.ResolveDirect(ctx, c.UserID, recipient.ID)
	if err != nil {
		r.fail(c, EventPrivateMessageError, "failed to resolve conversation", err)
		return
	}

	msg, err := r.msgs.Send(ctx, conv.ID, c.UserID, p.Message)
	if err != nil {
		r.fail(c, EventPrivateMessageError, "failed to send message", err)
		return
	}

	// Both ends must be in the room before the emit; on a lazily created
	// conversation neither side is subscribed yet, and an online
	// recipient would otherwise miss the first message.
	r.hub.JoinUser(c.UserID, conv.ID)
	r.hub.JoinUser(recipient.ID, conv.ID)
	if created {
		r.log.Info("direct conversation created",
			zap.Int64("conversation_id", conv.ID),
			zap.String("from", c.Username),
			zap.String("to", recipient.Username))
	}

	r.metrics.RecordRouted(EventPrivateMessage)
	r.hub.EmitToRoom(conv.ID, map[string]any{
		"type":    EventReceivePrivateMessage,
		"from":    c.Username,
		"to":      recipient.Username,
		"message": msg.Content,
		"send_on": sendOnOr(p.SendOn, msg.CreatedAt),
	})
}

func (r *Router) handleGroupMessage(ctx context.Context, c *Client, raw []byte) {
	var p groupMessagePayload
	if !r.decode(c, EventGroupMessageError, raw, &p) {
		return
	}

	conv, err := r.convs.ResolveGroupConversation(ctx, p.To)
	if errors.Is(err, domain.ErrNotFound) {
		r.metrics.RecordRejected()
		r.sendError(c, EventGroupMessageError, "Conversation not found")
		return
	}
	if err != nil {
		r.fail(c, EventGroupMessageError, "failed to resolve group", err)
		return
	}

	msg, err := r.msgs.Send(ctx, conv.ID, c.UserID, p.Message)
	if err != nil {
		r.fail(c, EventGroupMessageError, "failed to send message", err)
		return
	}

	// Idempotent rejoin: participants who connected before the group
	// existed, or whose membership changed since, are synced here.
	ids, err := r.msgs.ParticipantIDs(ctx, conv.ID)
	if err != nil {
		r.fail(c, EventGroupMessageError, "failed to list participants", err)
		return
	}
	for _, id := range ids {
		r.hub.JoinUser(id, conv.ID)
	}

	r.metrics.RecordRouted(EventGroupMessage)
	r.hub.EmitToRoom(conv.ID, map[string]any{
		"type":    EventReceiveGroupMessage,
		"from":    c.Username,
		"to":      p.To,
		"message": msg.Content,
		"send_on": sendOnOr(p.SendOn, msg.CreatedAt),
	})
}

func (r *Router) handleTyping(ctx context.Context, c *Client, raw []byte) {
	var p typingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.metrics.RecordRejected()
		return
	}
	r.metrics.RecordRouted(EventTyping)
	r.hub.EmitToAll(map[string]any{
		"type":     EventTyping,
		"username": c.Username,
		"isTyping": p.IsTyping,
	})
}

func (r *Router) handleCreateGroup(ctx context.Context, c *Client, raw []byte) {
	var p createGroupPayload
	if !r.decode(c, EventError, raw, &p) {
		return
	}
	// creatorId is accepted for wire compatibility but must name the
	// connection's own user; groups are never minted on someone's behalf.
	if p.CreatorID != 0 && p.CreatorID != c.UserID {
		r.fail(c, EventError, "failed to create group", domain.ErrForbidden)
		return
	}

	group, err := r.groups.Create(ctx, service.GroupCreateInput{
		Name:        p.Name,
		Description: p.Description,
		CreatorID:   c.UserID,
	})
	if err != nil {
		r.fail(c, EventError, "failed to create group", err)
		return
	}

	r.metrics.RecordRouted(EventCreateGroup)
	r.NotifyGroupCreated(group)
}

func (r *Router) handleAddUserToGroup(ctx context.Context, c *Client, raw []byte) {
	var p groupMembershipPayload
	if !r.decode(c, EventError, raw, &p) {
		return
	}

	group, user, err := r.groups.AddUser(ctx, p.GroupID, p.UserID, c.UserID)
	if err != nil {
		r.fail(c, EventError, "failed to add user to group", err)
		return
	}

	r.metrics.RecordRouted(EventAddUserToGroup)
	r.NotifyUserAdded(group, user)
}

func (r *Router) handleRemoveUserFromGroup(ctx context.Context, c *Client, raw []byte) {
	var p groupMembershipPayload
	if !r.decode(c, EventError, raw, &p) {
		return
	}

	group, user, err := r.groups.RemoveUser(ctx, p.GroupID, p.UserID, c.UserID)
	if err != nil {
		r.fail(c, EventError, "failed to remove user from group", err)
		return
	}

	r.metrics.RecordRouted(EventRemoveUserFromGroup)
	r.NotifyUserRemoved(group, user)
}

// NotifyGroupCreated syncs room state and informs the creator. Shared
// with the REST group surface so both paths behave identically.
func (r *Router) NotifyGroupCreated(group *domain.Group) {
	r.hub.JoinUser(group.CreatorID, group.ConversationID)
	r.hub.EmitToUser(group.CreatorID, map[string]any{
		"type":  EventGroupCreated,
		"group": group,
	})
}

// NotifyUserAdded joins the new member's live connections to the room
// and announces the change to the room.
func (r *Router) NotifyUserAdded(group *domain.Group, user *domain.User) {
	r.hub.JoinUser(user.ID, group.ConversationID)
	r.hub.EmitToRoom(group.ConversationID, map[string]any{
		"type":     EventUserAddedToGroup,
		"groupId":  group.ID,
		"userId":   user.ID,
		"username": user.Username,
	})
}

// NotifyUserRemoved announces the change to the room (the removed
// member included), then evicts the removed member's connections.
// Eviction is deliberate: without it a removed user keeps receiving
// group traffic until they reconnect.
func (r *Router) NotifyUserRemoved(group *domain.Group, user *domain.User) {
	r.hub.EmitToRoom(group.ConversationID, map[string]any{
		"type":     EventUserRemovedFromGroup,
		"groupId":  group.ID,
		"userId":   user.ID,
		"username": user.Username,
	})
	r.hub.LeaveUser(user.ID, group.ConversationID)
}

// decode unmarshals and validates an inbound payload, reporting a scoped
// error event to the sender on failure.
func (r *Router) decode(c *Client, errEvent string, raw []byte, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		r.metrics.RecordRejected()
		r.sendError(c, errEvent, "malformed event payload")
		return false
	}
	if err := r.validate.Struct(v); err != nil {
		r.metrics.RecordRejected()
		r.sendError(c, errEvent, "invalid event payload")
		return false
	}
	return true
}

// fail reports a failure to the originating connection only. Errors are
// never broadcast and never retried here.
func (r *Router) fail(c *Client, errEvent, msg string, err error) {
	r.metrics.RecordRejected()
	r.log.Warn("event rejected",
		zap.String("event", errEvent),
		zap.String("user", c.Username),
		zap.Error(err))
	r.sendError(c, errEvent, errorMessage(msg, err))
}

func (r *Router) sendError(c *Client, event, msg string) {
	_ = c.Send(map[string]any{
		"type":    event,
		"message": msg,
	})
}

func errorMessage(fallback string, err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrConflict):
		return "already exists"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid input"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return fallback
	}
}

func sendOn(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now().UTC()
}

func sendOnOr(t *time.Time, fallback time.Time) time.Time {
	if t != nil {
		return *t
	}
	return fallback
}
