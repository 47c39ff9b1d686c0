package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/eventsphere/internal/model"
)

// TicketRepo provides data access to the tickets table.  All timestamps
// are written and read in UTC.
type TicketRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewTicketRepo returns a new TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const ticketColumns = `id, event_id, user_id, status, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*model.Ticket, error) {
	var t model.Ticket
	var status string
	if err := row.Scan(&t.ID, &t.EventID, &t.UserID, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	t.Status = model.TicketStatus(status)
	return &t, nil
}

// Create inserts t, assigning a new UUID and timestamps.  A second ticket
// for the same (user, event) pair hits uq_tickets_user_event and is
// reported as ErrConflict.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	const q = `INSERT INTO tickets (id, event_id, user_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, t.ID, t.EventID, t.UserID, string(t.Status), t.CreatedAt, t.UpdatedAt); err != nil {
		return translate(err)
	}
	return nil
}

// FindByID loads a ticket by primary key.
func (r *TicketRepo) FindByID(ctx context.Context, id string) (*model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? LIMIT 1`
	return scanTicket(r.db.QueryRowContext(ctx, q, id))
}

// FindByUserAndEvent returns the ticket of any status held by userID for
// eventID, or ErrNotFound.
func (r *TicketRepo) FindByUserAndEvent(ctx context.Context, userID, eventID string) (*model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = ? AND event_id = ? LIMIT 1`
	return scanTicket(r.db.QueryRowContext(ctx, q, userID, eventID))
}

// UpdateStatus sets the status of ticket id and returns the updated row.
func (r *TicketRepo) UpdateStatus(ctx context.Context, id string, status model.TicketStatus) (*model.Ticket, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid ticket status %q", status)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`, string(status), r.now(), id)
	if err != nil {
		return nil, translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// Delete removes ticket id.  Deleting a missing ticket returns ErrNotFound.
func (r *TicketRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
