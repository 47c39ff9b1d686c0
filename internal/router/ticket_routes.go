package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventsphere/internal/handler"
	"github.com/iliyamo/eventsphere/internal/middleware"
)

// RegisterTickets registers the purchase endpoint under /v1/tickets.  It
// requires a valid JWT with the USER or ADMIN role and is guarded by the
// token bucket limiter, which runs after authentication so buckets are
// keyed by user.
func RegisterTickets(e *echo.Echo, h *handler.TicketHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/tickets",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("USER", "ADMIN"),
		limiter,
	)
	g.POST("/purchase/:eventId", h.Purchase)
}
