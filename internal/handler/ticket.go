package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventsphere/internal/middleware"
	"github.com/iliyamo/eventsphere/internal/ticket"
)

// Purchaser runs ticket purchases.
type Purchaser interface {
	Purchase(ctx context.Context, userID, eventID string) (*ticket.Result, error)
}

// TicketHandler serves the purchase endpoint.  It assumes JWTAuth has
// already run.
type TicketHandler struct {
	Tickets Purchaser
}

// NewTicketHandler returns a handler running purchases through p.
func NewTicketHandler(p Purchaser) *TicketHandler {
	return &TicketHandler{Tickets: p}
}

// Purchase handles POST /v1/tickets/purchase/:eventId.  It returns 201
// with {success, message, ticket}; failures are rendered by ErrorHandler.
func (h *TicketHandler) Purchase(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	eventID := c.Param("eventId")
	if eventID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "eventId is required")
	}

	res, err := h.Tickets.Purchase(c.Request().Context(), userID, eventID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}
