// Package realtime is the websocket gateway: it authenticates
// connections, keeps per-event rooms, mirrors membership into the presence
// store and pushes live updates (online counts, viewer counts, ticket
// sales) to connected clients.
package realtime

import (
	"encoding/json"
	"time"
)

// Wire event names.
const (
	EventJoin  = "event:join"
	EventLeave = "event:leave"

	EventConnectionSuccess = "connection:success"
	EventJoined            = "event:joined"
	EventLeft              = "event:left"
	EventOnlineUpdate      = "online:update"
	EventViewUpdate        = "event:view:update"
	EventTicketPurchased   = "ticket:purchased"
	EventPurchaseSuccess   = "ticket:purchase:success"
	EventError             = "error"
)

// Message is a frame in either direction.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomForEvent is the room of clients watching eventID.
func RoomForEvent(eventID string) string {
	return "event:" + eventID
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

type eventRef struct {
	EventID string `json:"eventId"`
}

type errorFrame struct {
	Message string `json:"message"`
}

type connectedFrame struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type membershipFrame struct {
	EventID string `json:"eventId"`
	Message string `json:"message"`
}

type onlineFrame struct {
	Count int64 `json:"count"`
}

type viewersFrame struct {
	EventID string `json:"eventId"`
	Viewers int64  `json:"viewers"`
}

// ticketSoldFrame is broadcast to an event room.  It carries identifiers
// only, never the buyer's contact details.
type ticketSoldFrame struct {
	EventID    string    `json:"eventId"`
	UserID     string    `json:"userId"`
	TicketID   string    `json:"ticketId"`
	EventTitle string    `json:"eventTitle"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

type purchaseSuccessFrame struct {
	TicketID   string    `json:"ticketId"`
	EventTitle string    `json:"eventTitle"`
	EventDate  time.Time `json:"eventDate"`
	Message    string    `json:"message"`
}
