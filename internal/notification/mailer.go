package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/model"
)

// Email is a plain text message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers emails.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// LogMailer "delivers" emails by writing them to the log.  It stands in
// for an SMTP relay in development and in tests.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer returns a mailer writing to log.
func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Send logs e as one structured entry.
func (m *LogMailer) Send(_ context.Context, e Email) error {
	m.log.Info("email notification",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("body", e.Body))
	return nil
}

// ticketConfirmation composes the purchase confirmation email.
func ticketConfirmation(d model.TicketPurchasedData) Email {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", d.UserName)
	b.WriteString("Your ticket has been successfully purchased!\n\n")
	fmt.Fprintf(&b, "Event: %s\n", d.EventTitle)
	fmt.Fprintf(&b, "Date: %s\n", d.EventDate.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Ticket ID: %s\n\n", d.TicketID)
	b.WriteString("Thank you for your purchase")
	return Email{
		To:      d.UserEmail,
		Subject: "Ticket Confirmation - " + d.EventTitle,
		Body:    b.String(),
	}
}
