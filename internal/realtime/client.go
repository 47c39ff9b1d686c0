package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iliyamo/eventsphere/internal/model"
)

// Client is one authenticated websocket connection.
type Client struct {
	id   string
	user model.Identity
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// rooms is guarded by the hub lock.
	rooms map[string]struct{}
}

func newClient(conn *websocket.Conn, user model.Identity, buffer int) *Client {
	return &Client{
		id:    uuid.NewString(),
		user:  user,
		conn:  conn,
		send:  make(chan []byte, buffer),
		rooms: map[string]struct{}{},
	}
}

// ID is the connection id.
func (c *Client) ID() string { return c.id }

// UserID is the authenticated user of the connection.
func (c *Client) UserID() string { return c.user.UserID }

// trySend queues frame without blocking.  It reports false when the
// client is closed or its buffer is full.
func (c *Client) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// emit queues a frame for this client only.
func (c *Client) emit(event string, data any) bool {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return false
	}
	return c.trySend(frame)
}

// close stops the write loop, which then closes the socket.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writeLoop drains the send buffer and keeps the connection alive with
// pings.  It owns all writes to the socket.
func (c *Client) writeLoop(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
