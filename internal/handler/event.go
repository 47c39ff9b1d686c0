package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventsphere/internal/model"
	"github.com/iliyamo/eventsphere/internal/repository"
	"github.com/iliyamo/eventsphere/internal/ticket"
)

// EventFinder loads catalog events.
type EventFinder interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
}

// EventHandler serves public catalog reads.
type EventHandler struct {
	Events EventFinder
}

// NewEventHandler returns a handler reading events from f.
func NewEventHandler(f EventFinder) *EventHandler {
	return &EventHandler{Events: f}
}

// Get handles GET /v1/events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	id := c.Param("id")
	ev, err := h.Events.FindByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return ticket.EventNotFound(id)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ev)
}
