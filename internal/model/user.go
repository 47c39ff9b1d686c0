package model

import "time"

// TicketPurchasedData is the payload carried by a "ticket-purchased"
// notification job.  It is produced by the purchase flow and consumed by
// the notification worker, which mails the confirmation and hands the
// same data to the realtime gateway.
type TicketPurchasedData struct {
	UserID     string    `json:"userId"`
	UserEmail  string    `json:"userEmail"`
	UserName   string    `json:"userName"`
	EventID    string    `json:"eventId"`
	EventTitle string    `json:"eventTitle"`
	EventDate  time.Time `json:"eventDate"`
	TicketID   string    `json:"ticketId"`
}

// Identity is the authenticated principal carried by an access token.
// Users themselves are owned by the registration service; this backend
// only sees them through tokens and the event owner join.
//
// Fields:
//
//	UserID – token subject (users.id).
//	Email  – email claim.
//	Role   – USER or ADMIN.
type Identity struct {
	UserID string
	Email  string
	Role   string
}
