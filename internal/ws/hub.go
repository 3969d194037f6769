package ws

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"chatserver/internal/metrics"
)

// Hub is the presence registry and room membership map. It owns all
// Connection entities for the life of the process; nothing here is
// persisted, and nothing here survives a restart.
//
// Rooms are a projection of conversation_participants rows onto live
// connections, keyed by conversation ID. The store stays the source of
// truth; the hub only executes the join/leave commands the router
// derives from it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client           // connection ID -> client
	byUser  map[int64]map[string]*Client // user ID -> connection ID -> client
	rooms   map[int64]map[string]*Client // conversation ID -> connection ID -> client

	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		byUser:  make(map[int64]map[string]*Client),
		rooms:   make(map[int64]map[string]*Client),
		log:     log,
		metrics: m,
	}
}

// Register adds a freshly authenticated connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[string]*Client)
	}
	h.byUser[c.UserID][c.ID] = c

	h.metrics.SetConnections(len(h.clients))
	h.metrics.SetOnlineUsers(len(h.byUser))
}

// Unregister removes a connection and all of its room subscriptions.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	if conns, ok := h.byUser[c.UserID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}

	h.metrics.SetConnections(len(h.clients))
	h.metrics.SetOnlineUsers(len(h.byUser))
}

// Join subscribes a single connection to a room. Idempotent.
func (h *Hub) Join(connID string, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(connID, roomID)
}

// JoinUser subscribes every live connection of the user to the room.
// A no-op for offline users; they pick up membership on next connect.
func (h *Hub) JoinUser(userID, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.byUser[userID] {
		h.joinLocked(connID, roomID)
	}
}

func (h *Hub) joinLocked(connID string, roomID int64) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	if _, already := h.rooms[roomID][connID]; !already {
		h.rooms[roomID][connID] = c
		h.metrics.RecordRoomJoin()
	}
}

// Leave unsubscribes a single connection from a room.
func (h *Hub) Leave(connID string, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, roomID)
}

// LeaveUser unsubscribes every live connection of the user from the room.
func (h *Hub) LeaveUser(userID, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.byUser[userID] {
		h.leaveLocked(connID, roomID)
	}
}

func (h *Hub) leaveLocked(connID string, roomID int64) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// EmitToRoom delivers one payload to every connection subscribed to the
// room.
func (h *Hub) EmitToRoom(roomID int64, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		h.send(c, payload)
	}
}

// EmitToUser delivers the payload to all of one user's connections.
func (h *Hub) EmitToUser(userID int64, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.byUser[userID] {
		h.send(c, payload)
	}
}

// EmitToAll delivers the payload to every registered connection.
func (h *Hub) EmitToAll(payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.send(c, payload)
	}
}

func (h *Hub) send(c *Client, payload any) {
	if err := c.Send(payload); err != nil {
		// connection is torn down by its own read loop; just log
		h.log.Debug("ws write failed", zap.String("conn", c.ID), zap.Error(err))
		return
	}
	h.metrics.RecordDelivery()
}

// ConnectionsFor returns the connection IDs of a user's live sockets.
func (h *Hub) ConnectionsFor(username string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ids []string
	for _, c := range h.clients {
		if c.Username == username {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// OnlineUsernames returns the sorted set of connected usernames, the
// payload of the `users` presence broadcast.
func (h *Hub) OnlineUsernames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{}, len(h.byUser))
	names := make([]string, 0, len(h.byUser))
	for _, c := range h.clients {
		if _, ok := seen[c.Username]; ok {
			continue
		}
		seen[c.Username] = struct{}{}
		names = append(names, c.Username)
	}
	sort.Strings(names)
	return names
}

// RoomSize reports the live subscriber count of a room.
func (h *Hub) RoomSize(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
