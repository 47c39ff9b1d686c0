package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/eventsphere/internal/model"
)

// EventRepo reads events from the catalog tables.  Writes belong to the
// catalog service.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// FindByID loads an event together with its owner's name and email.
// ErrNotFound is returned when no event has the given id.
func (r *EventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	const q = `SELECT e.id, e.title, e.description, e.date, e.price, e.user_id, e.cancelled,
	                  e.created_at, e.updated_at, u.email, u.name
	           FROM events e
	           LEFT JOIN users u ON u.id = e.user_id
	           WHERE e.id = ?
	           LIMIT 1`
	var (
		ev          model.Event
		description sql.NullString
		price       decimal.NullDecimal
		email, name sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&ev.ID, &ev.Title, &description, &ev.Date, &price, &ev.OwnerID, &ev.Cancelled,
		&ev.CreatedAt, &ev.UpdatedAt, &email, &name,
	)
	if err != nil {
		return nil, translate(err)
	}
	ev.Description = description.String
	if price.Valid {
		ev.Price = price.Decimal
	}
	ev.OwnerEmail = email.String
	ev.OwnerName = name.String
	ev.Date = ev.Date.UTC()
	return &ev, nil
}
