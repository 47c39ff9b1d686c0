package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event represents a scheduled event in the catalog.  Tickets are sold
// until Date passes.  The owner's contact details are loaded alongside
// the event so that purchase confirmations can be addressed without a
// second lookup.
//
// Fields:
//
//	ID          – primary key (UUID).
//	Title       – display title.
//	Description – free text description (may be empty).
//	Date        – when the event takes place (UTC).
//	Price       – ticket price, DECIMAL(10,2).
//	OwnerID     – user that created the event.
//	OwnerEmail  – contact email of the owner (users.email).
//	OwnerName   – display name of the owner (users.name).
//	Cancelled   – whether the event has been cancelled.
//	CreatedAt   – creation timestamp.
//	UpdatedAt   – last update timestamp.
type Event struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	Price       decimal.Decimal `json:"price"`
	OwnerID     string          `json:"ownerId"`
	OwnerEmail  string          `json:"-"`
	OwnerName   string          `json:"ownerName,omitempty"`
	Cancelled   bool            `json:"cancelled"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsPast reports whether the event date lies before now.
func (e *Event) IsPast(now time.Time) bool {
	return e.Date.Before(now)
}
