package ticket

import (
	"fmt"
	"net/http"
)

// Stable machine-readable error codes returned to API clients.
const (
	CodeEventNotFound       = "EVENT_NOT_FOUND"
	CodeEventAlreadyPast    = "EVENT_ALREADY_PAST"
	CodeTicketAlreadyExists = "TICKET_ALREADY_EXISTS"
	CodePaymentFailed       = "PAYMENT_FAILED"
)

// Error is a domain error of the purchase flow.  Status is the HTTP
// status the error maps to; Code is stable across releases while Message
// is meant for humans.
type Error struct {
	Code    string
	Status  int
	Message string
}

// Error returns the human readable message.
func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, ticket.ErrPaymentFailed) regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrEventNotFound       = &Error{Code: CodeEventNotFound, Status: http.StatusNotFound}
	ErrEventAlreadyPast    = &Error{Code: CodeEventAlreadyPast, Status: http.StatusBadRequest}
	ErrTicketAlreadyExists = &Error{Code: CodeTicketAlreadyExists, Status: http.StatusConflict}
	ErrPaymentFailed       = &Error{Code: CodePaymentFailed, Status: http.StatusBadRequest}
)

// EventNotFound is the error for an unknown event id.
func EventNotFound(eventID string) *Error {
	return &Error{Code: CodeEventNotFound, Status: http.StatusNotFound,
		Message: fmt.Sprintf("Event with ID %s not found", eventID)}
}

func eventAlreadyPast() *Error {
	return &Error{Code: CodeEventAlreadyPast, Status: http.StatusBadRequest,
		Message: "This event has already occurred"}
}

func ticketAlreadyExists() *Error {
	return &Error{Code: CodeTicketAlreadyExists, Status: http.StatusConflict,
		Message: "You have already purchased a ticket for this event"}
}

func paymentFailed(reason string) *Error {
	return &Error{Code: CodePaymentFailed, Status: http.StatusBadRequest,
		Message: "Payment failed: " + reason}
}
