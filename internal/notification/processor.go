package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/model"
)

// Broadcaster pushes a confirmed purchase to connected clients.  It is
// implemented by the realtime gateway and must not fail the job: errors
// are handled on its side.
type Broadcaster interface {
	BroadcastTicketPurchased(ctx context.Context, data model.TicketPurchasedData)
}

// TicketPurchasedProcessor handles "ticket-purchased" jobs: it mails the
// confirmation and then broadcasts the sale.
type TicketPurchasedProcessor struct {
	mailer      Mailer
	broadcaster Broadcaster
	log         *zap.Logger
}

// NewTicketPurchasedProcessor returns a processor.  broadcaster may be nil.
func NewTicketPurchasedProcessor(mailer Mailer, broadcaster Broadcaster, log *zap.Logger) *TicketPurchasedProcessor {
	return &TicketPurchasedProcessor{mailer: mailer, broadcaster: broadcaster, log: log}
}

// Handle implements Handler.
func (p *TicketPurchasedProcessor) Handle(ctx context.Context, job *Job) error {
	var data model.TicketPurchasedData
	if err := json.Unmarshal(job.Data, &data); err != nil {
		return fmt.Errorf("decode %s payload: %w", job.Name, err)
	}
	if err := validatePurchase(data); err != nil {
		return err
	}

	if err := p.mailer.Send(ctx, ticketConfirmation(data)); err != nil {
		return fmt.Errorf("send confirmation for ticket %s: %w", data.TicketID, err)
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastTicketPurchased(ctx, data)
	}
	return nil
}

func validatePurchase(d model.TicketPurchasedData) error {
	var missing []string
	if d.TicketID == "" {
		missing = append(missing, "ticketId")
	}
	if d.EventID == "" {
		missing = append(missing, "eventId")
	}
	if d.UserID == "" {
		missing = append(missing, "userId")
	}
	if len(missing) > 0 {
		return errors.New("invalid ticket-purchased payload: missing " + strings.Join(missing, ", "))
	}
	return nil
}
