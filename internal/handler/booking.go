package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/service"
)

// BookingHandler serves the authenticated guest and host endpoints.  All
// methods assume JWTAuth and RequireRole already ran; ownership checks
// happen in the service.
type BookingHandler struct {
	svc   BookingAPI
	log   logrus.FieldLogger
	cache PropertyCache
}

// PropertyCache forgets cached public views of a property.
type PropertyCache interface {
	InvalidateProperty(ctx context.Context, id uint64)
}

// NewBookingHandler panics if svc is nil.
func NewBookingHandler(svc BookingAPI, log logrus.FieldLogger) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BookingHandler{svc: svc, log: log}
}

// WithCache makes the handler drop the cached property view whenever a
// request changes that property's blocked days.
func (h *BookingHandler) WithCache(pc PropertyCache) *BookingHandler {
	h.cache = pc
	return h
}

func (h *BookingHandler) forget(c echo.Context, propertyID uint64) {
	if h.cache != nil {
		h.cache.InvalidateProperty(c.Request().Context(), propertyID)
	}
}

type createBookingRequest struct {
	PropertyID      uint64  `json:"property_id" validate:"required"`
	CheckIn         string  `json:"check_in" validate:"required"`
	CheckOut        string  `json:"check_out" validate:"required"`
	Adults          int     `json:"adults" validate:"gte=1,lte=50"`
	Children        int     `json:"children" validate:"gte=0,lte=50"`
	ContactName     string  `json:"contact_name" validate:"required,max=255"`
	ContactEmail    string  `json:"contact_email" validate:"required,email,max=255"`
	ContactPhone    string  `json:"contact_phone" validate:"max=64"`
	SpecialRequests *string `json:"special_requests" validate:"omitempty,max=2000"`
}

type cancelBookingRequest struct {
	Reason       *string `json:"reason" validate:"omitempty,max=1000"`
	Acknowledged bool    `json:"acknowledged"`
}

type blockDatesRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// CreateBooking handles POST /v1/bookings.  201 with the booking on
// success, 409 with conflict_dates when any night is taken.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	var body createBookingRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	in, out, ok, err := stayRange(c, body.CheckIn, body.CheckOut)
	if !ok {
		return err
	}
	var special *string
	if body.SpecialRequests != nil {
		if s := strings.TrimSpace(*body.SpecialRequests); s != "" {
			special = &s
		}
	}
	b, err := h.svc.Create(c.Request().Context(), service.CreateRequest{
		PropertyID:      body.PropertyID,
		GuestID:         a.UserID,
		CheckIn:         in,
		CheckOut:        out,
		Adults:          body.Adults,
		Children:        body.Children,
		ContactName:     strings.TrimSpace(body.ContactName),
		ContactEmail:    strings.TrimSpace(body.ContactEmail),
		ContactPhone:    strings.TrimSpace(body.ContactPhone),
		SpecialRequests: special,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.forget(c, b.PropertyID)
	return c.JSON(http.StatusCreated, b)
}

// ListMyBookings handles GET /v1/my-bookings.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	list, err := h.svc.ListForGuest(c.Request().Context(), a.UserID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetBooking handles GET /v1/bookings/:id and GET /v1/host/bookings/:id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	b, err := h.svc.Get(c.Request().Context(), c.Param("id"), a)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// GetBookingByCode handles GET /v1/bookings/code/:code.
func (h *BookingHandler) GetBookingByCode(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	b, err := h.svc.GetByCode(c.Request().Context(), strings.ToUpper(c.Param("code")), a)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CancellationPreview handles GET /v1/bookings/:id/cancellation.  It tells
// the client whether a cancel would be accepted and which warning to show.
func (h *BookingHandler) CancellationPreview(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	d, err := h.svc.CancellationPreview(c.Request().Context(), c.Param("id"), a)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// CancelBooking handles POST /v1/bookings/:id/cancel and
// POST /v1/host/bookings/:id/cancel.  The body is optional.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	var body cancelBookingRequest
	if c.Request().ContentLength != 0 {
		if ok, err := bindValid(c, &body); !ok {
			return err
		}
	}
	var reason *string
	if body.Reason != nil {
		if s := strings.TrimSpace(*body.Reason); s != "" {
			reason = &s
		}
	}
	b, err := h.svc.Cancel(c.Request().Context(), service.CancelRequest{
		BookingID:    c.Param("id"),
		Actor:        a,
		Reason:       reason,
		Acknowledged: body.Acknowledged,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.forget(c, b.PropertyID)
	return c.JSON(http.StatusOK, b)
}

// ConfirmBooking handles POST /v1/host/bookings/:id/confirm.
func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	b, err := h.svc.Confirm(c.Request().Context(), c.Param("id"), a)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListPropertyBookings handles GET /v1/host/properties/:id/bookings.
func (h *BookingHandler) ListPropertyBookings(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	id, ok, err := propertyID(c)
	if !ok {
		return err
	}
	list, err := h.svc.ListForProperty(c.Request().Context(), id, a)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// Calendar handles GET /v1/host/properties/:id/blocks.
func (h *BookingHandler) Calendar(c echo.Context) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	id, ok, err := propertyID(c)
	if !ok {
		return err
	}
	rows, err := h.svc.HostCalendar(c.Request().Context(), id, a)
	if err != nil {
		return writeError(c, h.log, err)
	}
	type day struct {
		Day       string  `json:"day"`
		BookingID *string `json:"booking_id"`
	}
	out := make([]day, 0, len(rows))
	for _, r := range rows {
		out = append(out, day{Day: r.Day, BookingID: r.BookingID})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// BlockDates handles POST /v1/host/properties/:id/blocks.
func (h *BookingHandler) BlockDates(c echo.Context) error {
	return h.withhold(c, true)
}

// UnblockDates handles DELETE /v1/host/properties/:id/blocks.
func (h *BookingHandler) UnblockDates(c echo.Context) error {
	return h.withhold(c, false)
}

func (h *BookingHandler) withhold(c echo.Context, block bool) error {
	a, ok, err := actor(c)
	if !ok {
		return err
	}
	id, ok, err := propertyID(c)
	if !ok {
		return err
	}
	var body blockDatesRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	from, to, ok, err := stayRange(c, body.From, body.To)
	if !ok {
		return err
	}
	var held []string
	if block {
		held, err = h.svc.BlockDates(c.Request().Context(), id, a, from, to)
	} else {
		held, err = h.svc.UnblockDates(c.Request().Context(), id, a, from, to)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.forget(c, id)
	return c.JSON(http.StatusOK, echo.Map{"withheld": held})
}
