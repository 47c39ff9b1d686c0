package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/eventsphere/internal/handler"
)

// RegisterRoutes registers operational routes that do not require
// authentication: the health check and the Prometheus scrape endpoint
// serving the collectors registered on gatherer.
func RegisterRoutes(e *echo.Echo, gatherer prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterPublic registers unauthenticated catalog reads.  The cache
// middleware is applied per route so that it never sees authenticated
// traffic.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler, rt *handler.RealtimeHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/events/:id", ev.Get, cache)
	// Live counts are never cached.
	e.GET("/v1/events/:id/viewers", rt.Viewers)
	e.GET("/v1/realtime/online", rt.Online)
}

// RegisterRealtime mounts the websocket gateway.  Authentication happens
// inside the handler after the upgrade so the client can be told why it
// was rejected.
func RegisterRealtime(e *echo.Echo, ws echo.HandlerFunc) {
	e.GET("/ws", ws)
}
