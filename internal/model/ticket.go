package model

import "time"

// TicketStatus is the lifecycle state of a ticket.  A ticket is created
// PENDING by the purchase flow and moves to PAID or FAILED once the
// payment outcome is known.
type TicketStatus string

const (
	TicketPending TicketStatus = "PENDING"
	TicketPaid    TicketStatus = "PAID"
	TicketFailed  TicketStatus = "FAILED"
)

// Valid reports whether s is one of the known ticket states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPending, TicketPaid, TicketFailed:
		return true
	}
	return false
}

// Ticket records a user's admission to a specific event.
//
// Fields:
//
//	ID        – primary key (UUID).
//	EventID   – event the ticket admits to.
//	UserID    – purchasing user.
//	Status    – PENDING, PAID or FAILED.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
//
// The (UserID, EventID) pair is unique across all statuses.
type Ticket struct {
	ID        string       `json:"id"`        // tickets.id
	EventID   string       `json:"eventId"`   // tickets.event_id
	UserID    string       `json:"userId"`    // tickets.user_id
	Status    TicketStatus `json:"status"`    // tickets.status
	CreatedAt time.Time    `json:"createdAt"` // tickets.created_at
	UpdatedAt time.Time    `json:"updatedAt"` // tickets.updated_at
}
