// Package handler adapts the booking service to HTTP.  Handlers bind and
// validate the request, call the service with the caller's identity and
// map domain errors to status codes.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/middleware"
	"github.com/iliyamo/property-booking/internal/model"
	"github.com/iliyamo/property-booking/internal/repository"
	"github.com/iliyamo/property-booking/internal/service"
)

// BookingAPI is the part of service.BookingService the handlers use.
type BookingAPI interface {
	GetProperty(ctx context.Context, id uint64) (*model.Property, error)
	CheckAvailability(ctx context.Context, propertyID uint64, checkIn, checkOut time.Time) (booking.Availability, error)
	Quote(ctx context.Context, propertyID uint64, checkIn, checkOut time.Time) (booking.Pricing, error)

	Create(ctx context.Context, req service.CreateRequest) (*model.Booking, error)
	Confirm(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	Cancel(ctx context.Context, req service.CancelRequest) (*model.Booking, error)
	CancellationPreview(ctx context.Context, id string, actor model.Actor) (booking.CancelDecision, error)
	Get(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	GetByCode(ctx context.Context, code string, actor model.Actor) (*model.Booking, error)
	ListForGuest(ctx context.Context, guestID uint64) ([]model.Booking, error)
	ListForProperty(ctx context.Context, propertyID uint64, actor model.Actor) ([]model.Booking, error)

	HostCalendar(ctx context.Context, propertyID uint64, actor model.Actor) ([]model.BlockedDate, error)
	BlockDates(ctx context.Context, propertyID uint64, actor model.Actor, from, to time.Time) ([]string, error)
	UnblockDates(ctx context.Context, propertyID uint64, actor model.Actor, from, to time.Time) ([]string, error)
}

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator returns the validator installed on the echo instance.
func NewValidator() *RequestValidator {
	return &RequestValidator{v: validator.New()}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// bindValid binds the body into dst and validates it.  On failure it has
// already written the 400 response and returns false.
func bindValid(c echo.Context, dst interface{}) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}
	return true, nil
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return "invalid " + fe.Field() + ": failed " + fe.Tag()
	}
	return err.Error()
}

// actor returns the authenticated caller or writes 401.
func actor(c echo.Context) (model.Actor, bool, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return a, true, nil
}

// propertyID parses the :id path parameter.
func propertyID(c echo.Context) (uint64, bool, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property id"})
	}
	return id, true, nil
}

// stayRange parses the two ISO days bounding a stay or a blocked range.
func stayRange(c echo.Context, from, to string) (time.Time, time.Time, bool, error) {
	start, err := booking.ParseDay(from)
	if err != nil {
		return time.Time{}, time.Time{}, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start date " + strconv.Quote(from) + ", want YYYY-MM-DD"})
	}
	end, err := booking.ParseDay(to)
	if err != nil {
		return time.Time{}, time.Time{}, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end date " + strconv.Quote(to) + ", want YYYY-MM-DD"})
	}
	return start, end, true, nil
}

// writeError maps service and repository errors to HTTP responses.
// Unexpected errors are logged and reported as 500 without detail.
func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	var conflict *booking.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": booking.ErrAvailabilityConflict.Error(), "conflict_dates": conflictDates(conflict)})
	case errors.Is(err, booking.ErrAvailabilityConflict), errors.Is(err, repository.ErrDateTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": booking.ErrAvailabilityConflict.Error(), "conflict_dates": []string{}})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrCancellationWindow):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrConfirmationRequired):
		return c.JSON(http.StatusPreconditionRequired, echo.Map{"error": err.Error(), "warning": booking.WarningConfirmRequired})
	}
	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func conflictDates(e *booking.ConflictError) []string {
	if e.Dates == nil {
		return []string{}
	}
	return e.Dates
}
