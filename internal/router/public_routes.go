package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-booking/internal/handler"
	"github.com/iliyamo/property-booking/internal/middleware"
)

// RegisterPublic registers property reads under /v1.  They are rate
// limited; the detail view is also served from the response cache.
// Availability and quotes are never cached because a stale answer would
// contradict the booking endpoint.
func RegisterPublic(e *echo.Echo, h *handler.PropertyHandler, d Deps) {
	g := e.Group("/v1", middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger))
	g.GET("/properties/:id", h.GetProperty, middleware.NewRedisCache(d.Cache, d.Redis))
	g.GET("/properties/:id/availability", h.Availability)
	g.GET("/properties/:id/quote", h.Quote)
}
