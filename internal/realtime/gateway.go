package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/config"
	"github.com/iliyamo/eventsphere/internal/model"
	"github.com/iliyamo/eventsphere/internal/monitoring"
	"github.com/iliyamo/eventsphere/internal/presence"
)

// TokenVerifier authenticates a connection token.
type TokenVerifier interface {
	Verify(token string) (model.Identity, error)
}

const (
	handlerTimeout = 5 * time.Second
	cleanupTimeout = 10 * time.Second

	purchaseSuccessMessage = "Your ticket has been successfully purchased!"
)

// Gateway serves the websocket endpoint.
type Gateway struct {
	hub      *Hub
	emit     Emitter
	presence *presence.Tracker
	verifier TokenVerifier
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	log      *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// NewGateway wires a gateway.  emit is the hub itself on a single
// instance, or a RedisRelay fanning out to every instance's hub.
func NewGateway(hub *Hub, emit Emitter, tracker *presence.Tracker, verifier TokenVerifier,
	cfg config.RealtimeConfig, log *zap.Logger, metrics *monitoring.Metrics) *Gateway {
	g := &Gateway{
		hub:      hub,
		emit:     emit,
		presence: tracker,
		verifier: verifier,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range g.cfg.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and runs the connection until it closes.
// The token is read from the "token" query parameter or a Bearer
// Authorization header.
func (g *Gateway) ServeWS(c echo.Context) error {
	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the request
		g.log.Debug("realtime: upgrade failed", zap.Error(err))
		return nil
	}

	user, err := g.verifier.Verify(tokenFrom(c.Request()))
	if err != nil {
		g.log.Warn("realtime: connection rejected", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return nil
	}

	client := newClient(conn, user, g.cfg.SendBuffer)
	g.hub.Register(client)
	g.metrics.ConnectionOpened()
	go client.writeLoop(g.cfg.PingInterval, g.cfg.WriteTimeout)

	defer g.disconnect(client)

	if err := g.connect(c.Request().Context(), client); err != nil {
		g.log.Error("realtime: connect failed", zap.String("user_id", user.UserID), zap.Error(err))
		return nil
	}
	g.readLoop(client)
	return nil
}

func tokenFrom(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (g *Gateway) connect(ctx context.Context, c *Client) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handlerTimeout)
	defer cancel()

	if err := g.presence.Connect(ctx, c.UserID()); err != nil {
		return err
	}
	g.log.Info("realtime: client connected",
		zap.String("client_id", c.ID()), zap.String("user_id", c.UserID()))

	g.broadcastOnline(ctx)
	c.emit(EventConnectionSuccess, connectedFrame{
		Message: "Successfully connected to EventSphere",
		UserID:  c.UserID(),
	})
	return nil
}

// readLoop handles inbound frames one at a time until the socket fails.
func (g *Gateway) readLoop(c *Client) {
	pongWait := 2 * g.cfg.PingInterval
	c.conn.SetReadLimit(g.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				g.log.Debug("realtime: read failed", zap.String("client_id", c.ID()), zap.Error(err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.emit(EventError, errorFrame{Message: "Invalid message"})
			continue
		}
		g.handle(c, msg)
	}
}

func (g *Gateway) handle(c *Client, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var ref eventRef
	if len(msg.Data) > 0 {
		_ = json.Unmarshal(msg.Data, &ref)
	}

	switch msg.Event {
	case EventJoin:
		g.join(ctx, c, ref.EventID)
	case EventLeave:
		g.leave(ctx, c, ref.EventID)
	default:
		g.log.Debug("realtime: unknown event", zap.String("event", msg.Event))
	}
}

func (g *Gateway) join(ctx context.Context, c *Client, eventID string) {
	if eventID == "" {
		c.emit(EventError, errorFrame{Message: "eventId is required"})
		return
	}
	if err := g.presence.AddEventViewer(ctx, eventID, c.UserID()); err != nil {
		g.log.Error("realtime: join failed", zap.String("event_id", eventID), zap.Error(err))
		c.emit(EventError, errorFrame{Message: "Failed to join event"})
		return
	}
	g.hub.Join(c, RoomForEvent(eventID))
	g.log.Info("realtime: joined event", zap.String("user_id", c.UserID()), zap.String("event_id", eventID))

	g.broadcastViewers(ctx, eventID)
	c.emit(EventJoined, membershipFrame{EventID: eventID, Message: "Successfully joined event"})
}

func (g *Gateway) leave(ctx context.Context, c *Client, eventID string) {
	if eventID == "" {
		c.emit(EventError, errorFrame{Message: "eventId is required"})
		return
	}
	room := RoomForEvent(eventID)
	if !g.presence.RefCount() || !g.hub.UserInRoom(c.UserID(), room, c) {
		if err := g.presence.RemoveEventViewer(ctx, eventID, c.UserID()); err != nil {
			g.log.Error("realtime: leave failed", zap.String("event_id", eventID), zap.Error(err))
			c.emit(EventError, errorFrame{Message: "Failed to leave event"})
			return
		}
	}
	g.hub.Leave(c, room)
	g.log.Info("realtime: left event", zap.String("user_id", c.UserID()), zap.String("event_id", eventID))

	g.broadcastViewers(ctx, eventID)
	c.emit(EventLeft, membershipFrame{EventID: eventID, Message: "Successfully left event"})
}

// disconnect runs when the connection ends for any reason.  It uses its
// own context: the request that opened the socket may already be gone.
func (g *Gateway) disconnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	rooms := g.hub.Rooms(c)
	g.hub.Unregister(c)
	g.metrics.ConnectionClosed()
	userID := c.UserID()
	g.log.Info("realtime: client disconnected", zap.String("client_id", c.ID()), zap.String("user_id", userID))

	if !g.presence.RefCount() {
		g.leaveAllEvents(ctx, userID)
		if _, err := g.presence.Disconnect(ctx, userID); err != nil {
			g.log.Error("realtime: presence disconnect failed", zap.String("user_id", userID), zap.Error(err))
		}
		g.broadcastOnline(ctx)
		return
	}

	offline, err := g.presence.Disconnect(ctx, userID)
	if err != nil {
		g.log.Error("realtime: presence disconnect failed", zap.String("user_id", userID), zap.Error(err))
	}
	if offline {
		g.leaveAllEvents(ctx, userID)
	} else {
		// the user is still connected: release only the rooms no other
		// local connection of theirs holds
		for _, room := range rooms {
			if g.hub.UserInRoom(userID, room, nil) {
				continue
			}
			eventID := strings.TrimPrefix(room, "event:")
			if err := g.presence.RemoveEventViewer(ctx, eventID, userID); err != nil {
				g.log.Error("realtime: remove viewer failed", zap.String("event_id", eventID), zap.Error(err))
				continue
			}
			g.broadcastViewers(ctx, eventID)
		}
	}
	g.broadcastOnline(ctx)
}

func (g *Gateway) leaveAllEvents(ctx context.Context, userID string) {
	events, err := g.presence.ViewingEventsOf(ctx, userID)
	if err != nil {
		g.log.Error("realtime: lookup viewed events failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for _, eventID := range events {
		if err := g.presence.RemoveEventViewer(ctx, eventID, userID); err != nil {
			g.log.Error("realtime: remove viewer failed", zap.String("event_id", eventID), zap.Error(err))
			continue
		}
		g.broadcastViewers(ctx, eventID)
	}
}

func (g *Gateway) broadcastOnline(ctx context.Context) {
	count, err := g.presence.CountOnline(ctx)
	if err != nil {
		g.log.Error("realtime: count online failed", zap.Error(err))
		return
	}
	if err := g.emit.EmitAll(ctx, EventOnlineUpdate, onlineFrame{Count: count}); err != nil {
		g.log.Error("realtime: emit online update failed", zap.Error(err))
	}
}

func (g *Gateway) broadcastViewers(ctx context.Context, eventID string) {
	viewers, err := g.presence.CountEventViewers(ctx, eventID)
	if err != nil {
		g.log.Error("realtime: count viewers failed", zap.String("event_id", eventID), zap.Error(err))
		return
	}
	err = g.emit.EmitRoom(ctx, RoomForEvent(eventID), EventViewUpdate, viewersFrame{EventID: eventID, Viewers: viewers})
	if err != nil {
		g.log.Error("realtime: emit viewer update failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

// BroadcastTicketPurchased announces a sale to the event room and
// confirms it to every connection of the buyer.  Failures are logged
// only.
func (g *Gateway) BroadcastTicketPurchased(ctx context.Context, data model.TicketPurchasedData) {
	g.log.Info("realtime: emitting ticket purchased",
		zap.String("event_id", data.EventID), zap.String("user_id", data.UserID))

	err := g.emit.EmitRoom(ctx, RoomForEvent(data.EventID), EventTicketPurchased, ticketSoldFrame{
		EventID:    data.EventID,
		UserID:     data.UserID,
		TicketID:   data.TicketID,
		EventTitle: data.EventTitle,
		Status:     "paid",
		Timestamp:  g.now().UTC(),
	})
	if err != nil {
		g.log.Error("realtime: emit ticket purchased failed", zap.String("event_id", data.EventID), zap.Error(err))
	}

	err = g.emit.EmitUser(ctx, data.UserID, EventPurchaseSuccess, purchaseSuccessFrame{
		TicketID:   data.TicketID,
		EventTitle: data.EventTitle,
		EventDate:  data.EventDate,
		Message:    purchaseSuccessMessage,
	})
	if err != nil {
		g.log.Error("realtime: emit purchase success failed", zap.String("user_id", data.UserID), zap.Error(err))
	}
}

// OnlineCount is the number of online users.
func (g *Gateway) OnlineCount(ctx context.Context) (int64, error) {
	return g.presence.CountOnline(ctx)
}

// EventViewerCount is the number of users viewing eventID.
func (g *Gateway) EventViewerCount(ctx context.Context, eventID string) (int64, error) {
	return g.presence.CountEventViewers(ctx, eventID)
}

// Shutdown closes every connection of this instance.
func (g *Gateway) Shutdown() {
	g.hub.Shutdown()
}
