package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/monitoring"
)

// Emitter sends frames to every client, to a room, or to all connections
// of one user.
type Emitter interface {
	EmitAll(ctx context.Context, event string, data any) error
	EmitRoom(ctx context.Context, room, event string, data any) error
	EmitUser(ctx context.Context, userID, event string, data any) error
}

const (
	scopeAll  = "all"
	scopeRoom = "room"
	scopeUser = "user"
)

// Hub is the connection registry of this instance.  A client that cannot
// keep up with its frames is dropped rather than allowed to stall emits.
type Hub struct {
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	users   map[string]map[*Client]struct{}
}

// NewHub returns an empty hub.
func NewHub(log *zap.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		clients: map[*Client]struct{}{},
		rooms:   map[string]map[*Client]struct{}{},
		users:   map[string]map[*Client]struct{}{},
	}
}

// Register adds c to the hub and its user index.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	addMember(h.users, c.UserID(), c)
}

// Unregister removes c from the hub and closes it.  It is idempotent.  The
// client's own room list is kept so disconnect cleanup can still read it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		removeMember(h.users, c.UserID(), c)
		for room := range c.rooms {
			removeMember(h.rooms, room, c)
		}
	}
	h.mu.Unlock()
	c.close()
}

// Join adds c to room.  Unregistered clients are ignored.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	c.rooms[room] = struct{}{}
	addMember(h.rooms, room, c)
}

// Leave removes c from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.rooms, room)
	removeMember(h.rooms, room, c)
}

// Rooms lists the rooms c has joined.
func (h *Hub) Rooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		out = append(out, room)
	}
	return out
}

// UserInRoom reports whether any registered connection of userID other
// than except is in room.
func (h *Hub) UserInRoom(userID, room string, except *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		if c == except {
			continue
		}
		if _, ok := c.rooms[room]; ok {
			return true
		}
	}
	return false
}

// ConnectionCount is the number of registered clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EmitAll sends the frame to every local client.
func (h *Hub) EmitAll(_ context.Context, event string, data any) error {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	h.deliver(scopeAll, "", frame)
	return nil
}

// EmitRoom sends the frame to the local clients in room.
func (h *Hub) EmitRoom(_ context.Context, room, event string, data any) error {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	h.deliver(scopeRoom, room, frame)
	return nil
}

// EmitUser sends the frame to every local connection of userID.
func (h *Hub) EmitUser(_ context.Context, userID, event string, data any) error {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	h.deliver(scopeUser, userID, frame)
	return nil
}

// deliver queues an encoded frame for the clients in scope.
func (h *Hub) deliver(scope, target string, frame []byte) {
	var slow []*Client

	h.mu.RLock()
	var targets map[*Client]struct{}
	switch scope {
	case scopeAll:
		targets = h.clients
	case scopeRoom:
		targets = h.rooms[target]
	case scopeUser:
		targets = h.users[target]
	}
	for c := range targets {
		if !c.trySend(frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.metrics.TrackEmit(scope)
	for _, c := range slow {
		h.log.Warn("realtime: dropping slow client",
			zap.String("client_id", c.ID()), zap.String("user_id", c.UserID()))
		h.Unregister(c)
	}
}

// Shutdown closes every client.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.Unregister(c)
	}
}

func addMember(m map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := m[key]
	if !ok {
		set = map[*Client]struct{}{}
		m[key] = set
	}
	set[c] = struct{}{}
}

func removeMember(m map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(m, key)
	}
}
