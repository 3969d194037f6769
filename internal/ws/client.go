package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is the subset of *websocket.Conn the hub writes to. Tests swap in
// a recording implementation.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Client is one authenticated connection: the ephemeral link between a
// transport socket and a persisted user identity. It lives exactly as
// long as the socket.
type Client struct {
	ID       string
	UserID   int64
	Username string

	mu   sync.Mutex
	conn Conn
}

func NewClient(userID int64, username string, conn Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		conn:     conn,
	}
}

// Send writes one event to the socket. Writes are serialized per
// connection so fan-out preserves the order the router emitted in.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
