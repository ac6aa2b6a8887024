package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-booking/internal/handler"
	"github.com/iliyamo/property-booking/internal/middleware"
	"github.com/iliyamo/property-booking/internal/model"
)

// RegisterGuest registers the guest endpoints under /v1.  All routes
// require a valid JWT with the guest role.
func RegisterGuest(e *echo.Echo, h *handler.BookingHandler, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleGuest),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger),
	)
	g.POST("/bookings", h.CreateBooking)
	g.GET("/my-bookings", h.ListMyBookings)
	g.GET("/bookings/:id", h.GetBooking)
	g.GET("/bookings/code/:code", h.GetBookingByCode)
	g.GET("/bookings/:id/cancellation", h.CancellationPreview)
	g.POST("/bookings/:id/cancel", h.CancelBooking)
}
