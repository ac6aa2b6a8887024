package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-booking/internal/handler"
	"github.com/iliyamo/property-booking/internal/middleware"
	"github.com/iliyamo/property-booking/internal/model"
)

// RegisterHost registers the host endpoints under /v1/host.  All routes
// require a valid JWT with the host role; ownership of the property is
// checked by the service.
func RegisterHost(e *echo.Echo, h *handler.BookingHandler, d Deps) {
	g := e.Group(
		"/v1/host",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleHost),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger),
	)
	g.GET("/properties/:id/bookings", h.ListPropertyBookings)
	g.GET("/properties/:id/blocks", h.Calendar)
	g.POST("/properties/:id/blocks", h.BlockDates)
	g.DELETE("/properties/:id/blocks", h.UnblockDates)

	g.GET("/bookings/:id", h.GetBooking)
	g.GET("/bookings/:id/cancellation", h.CancellationPreview)
	g.POST("/bookings/:id/confirm", h.ConfirmBooking)
	g.POST("/bookings/:id/cancel", h.CancelBooking)
}
