package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// PresenceStats answers presence count queries.
type PresenceStats interface {
	OnlineCount(ctx context.Context) (int64, error)
	EventViewerCount(ctx context.Context, eventID string) (int64, error)
}

// RealtimeHandler exposes presence counts over HTTP for clients that are
// not connected to the websocket.
type RealtimeHandler struct {
	Stats PresenceStats
}

// NewRealtimeHandler returns a handler answering from s.
func NewRealtimeHandler(s PresenceStats) *RealtimeHandler {
	return &RealtimeHandler{Stats: s}
}

// Online handles GET /v1/realtime/online.
func (h *RealtimeHandler) Online(c echo.Context) error {
	n, err := h.Stats.OnlineCount(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

// Viewers handles GET /v1/events/:id/viewers.
func (h *RealtimeHandler) Viewers(c echo.Context) error {
	id := c.Param("id")
	n, err := h.Stats.EventViewerCount(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"eventId": id, "viewers": n})
}
