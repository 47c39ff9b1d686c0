// Package ticket implements the ticket purchase flow: a saga that
// reserves a PENDING ticket, charges the buyer through a payment gateway,
// settles the ticket as PAID or FAILED and hands confirmed purchases to
// the notification queue.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/model"
	"github.com/iliyamo/eventsphere/internal/monitoring"
	"github.com/iliyamo/eventsphere/internal/notification"
	"github.com/iliyamo/eventsphere/internal/repository"
)

// EventRepository loads catalog events.  FindByID returns
// repository.ErrNotFound for unknown ids.
type EventRepository interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
}

// TicketRepository persists tickets.  FindByUserAndEvent returns
// repository.ErrNotFound when the pair holds no ticket, and Create returns
// repository.ErrConflict when the (user, event) unique key is violated.
type TicketRepository interface {
	Create(ctx context.Context, t *model.Ticket) error
	FindByUserAndEvent(ctx context.Context, userID, eventID string) (*model.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status model.TicketStatus) (*model.Ticket, error)
	Delete(ctx context.Context, id string) error
}

// PaymentGateway charges the buyer.  A declined charge is reported as a
// result with Success=false; an error means the gateway itself failed.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context) (PaymentResult, error)
}

// Notifier queues the purchase confirmation.
type Notifier interface {
	TicketPurchased(ctx context.Context, data model.TicketPurchasedData) (*notification.Job, error)
}

// Result is returned for a successful purchase.
type Result struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Ticket  *model.Ticket `json:"ticket"`
}

const (
	// compensationTimeout bounds the cleanup of a PENDING ticket.
	compensationTimeout = 5 * time.Second
	// settleTimeout bounds the status write once the gateway has answered.
	settleTimeout = 5 * time.Second
	// notifyTimeout bounds enqueueing the confirmation.
	notifyTimeout = 3 * time.Second
)

// Service runs ticket purchases.
type Service struct {
	events   EventRepository
	tickets  TicketRepository
	payments PaymentGateway
	notifier Notifier
	log      *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// NewService wires the purchase flow.  metrics may be nil.
func NewService(events EventRepository, tickets TicketRepository, payments PaymentGateway, notifier Notifier, log *zap.Logger, metrics *monitoring.Metrics) *Service {
	return &Service{
		events:   events,
		tickets:  tickets,
		payments: payments,
		notifier: notifier,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Purchase buys a ticket to eventID for userID.
//
// The existence check below is only a fast path for a friendly error: it
// is not atomic with the insert that follows.  Two concurrent purchases
// for the same pair can both pass it, and the unique key on tickets
// rejects the loser, which is reported with the same TicketAlreadyExists
// error.
func (s *Service) Purchase(ctx context.Context, userID, eventID string) (res *Result, err error) {
	start := s.now()
	defer func() { s.metrics.TrackPurchase(outcomeOf(err), s.now().Sub(start)) }()

	event, err := s.events.FindByID(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, EventNotFound(eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	if event.IsPast(s.now()) {
		return nil, eventAlreadyPast()
	}

	_, err = s.tickets.FindByUserAndEvent(ctx, userID, eventID)
	switch {
	case err == nil:
		return nil, ticketAlreadyExists()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("check existing ticket: %w", err)
	}

	tk := &model.Ticket{EventID: eventID, UserID: userID, Status: model.TicketPending}
	if err := s.tickets.Create(ctx, tk); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ticketAlreadyExists()
		}
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	return s.settle(ctx, event, tk)
}

// settle charges the buyer for the PENDING ticket tk and moves it to its
// terminal state.
//
// A declined charge marks the ticket FAILED and keeps the row.  Any error
// (or panic) while the ticket is still PENDING deletes the row instead and
// the original error is returned unchanged.
//
// Only the payment call runs on ctx.  Once the gateway has answered, the
// outcome is recorded on a detached context so a client that hangs up
// cannot undo a charge that went through.
func (s *Service) settle(ctx context.Context, event *model.Event, tk *model.Ticket) (res *Result, err error) {
	status := model.TicketPending
	defer func() {
		if r := recover(); r != nil {
			s.compensate(ctx, tk, status)
			panic(r)
		}
		if err != nil {
			s.compensate(ctx, tk, status)
		}
	}()

	result, err := s.payments.ProcessPayment(ctx)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if !result.Success {
		if _, err := s.tickets.UpdateStatus(sctx, tk.ID, model.TicketFailed); err != nil {
			return nil, err
		}
		status = model.TicketFailed
		s.log.Warn("payment declined",
			zap.String("ticket_id", tk.ID),
			zap.String("event_id", tk.EventID),
			zap.String("user_id", tk.UserID),
			zap.String("reason", result.Message))
		return nil, paymentFailed(result.Message)
	}

	paid, err := s.tickets.UpdateStatus(sctx, tk.ID, model.TicketPaid)
	if err != nil {
		return nil, err
	}
	status = model.TicketPaid

	s.log.Info("ticket purchased",
		zap.String("ticket_id", paid.ID),
		zap.String("event_id", paid.EventID),
		zap.String("user_id", paid.UserID))

	s.notify(ctx, event, paid)

	return &Result{Success: true, Message: result.Message, Ticket: paid}, nil
}

// compensate deletes tk if it never left PENDING.  It runs detached from
// ctx so that a cancelled request still cleans up.
func (s *Service) compensate(ctx context.Context, tk *model.Ticket, status model.TicketStatus) {
	if status != model.TicketPending {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.tickets.Delete(cctx, tk.ID); err != nil {
		s.log.Error("failed to delete pending ticket",
			zap.String("ticket_id", tk.ID),
			zap.Error(err))
		return
	}
	s.log.Info("pending ticket rolled back", zap.String("ticket_id", tk.ID))
}

// notify queues the purchase confirmation.  The purchase is already paid,
// so a queue failure is logged and does not fail the request.
func (s *Service) notify(ctx context.Context, event *model.Event, tk *model.Ticket) {
	data := model.TicketPurchasedData{
		UserID:     tk.UserID,
		UserEmail:  event.OwnerEmail,
		UserName:   event.OwnerName,
		EventID:    tk.EventID,
		EventTitle: event.Title,
		EventDate:  event.Date,
		TicketID:   tk.ID,
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	job, err := s.notifier.TicketPurchased(nctx, data)
	if err != nil {
		s.log.Error("failed to enqueue purchase notification",
			zap.String("ticket_id", tk.ID),
			zap.Error(err))
		return
	}
	s.log.Debug("purchase notification enqueued",
		zap.String("ticket_id", tk.ID),
		zap.String("job_id", job.ID))
}

func outcomeOf(err error) string {
	if err == nil {
		return "paid"
	}
	var de *Error
	if errors.As(err, &de) {
		return strings.ToLower(de.Code)
	}
	return "error"
}
