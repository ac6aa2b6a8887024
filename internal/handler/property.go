package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/model"
)

// PropertyHandler serves the public, unauthenticated property reads.
type PropertyHandler struct {
	svc BookingAPI
	log logrus.FieldLogger
}

// NewPropertyHandler panics if svc is nil.
func NewPropertyHandler(svc BookingAPI, log logrus.FieldLogger) *PropertyHandler {
	if svc == nil {
		panic("nil service passed to NewPropertyHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PropertyHandler{svc: svc, log: log}
}

type propertyView struct {
	*model.Property
	BlockedDates []string `json:"blocked_dates"`
}

// GetProperty handles GET /v1/properties/:id.  The response includes the
// blocked days so a calendar can grey them out.
func (h *PropertyHandler) GetProperty(c echo.Context) error {
	id, ok, err := propertyID(c)
	if !ok {
		return err
	}
	p, err := h.svc.GetProperty(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, propertyView{Property: p, BlockedDates: p.BlockedDates.Sorted()})
}

// Availability handles GET /v1/properties/:id/availability?check_in=&check_out=.
func (h *PropertyHandler) Availability(c echo.Context) error {
	id, ok, err := propertyID(c)
	if !ok {
		return err
	}
	in, out, ok, err := stayRange(c, c.QueryParam("check_in"), c.QueryParam("check_out"))
	if !ok {
		return err
	}
	a, err := h.svc.CheckAvailability(c.Request().Context(), id, in, out)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Quote handles GET /v1/properties/:id/quote?check_in=&check_out=.  It
// returns the price breakdown a booking for that stay would freeze.
func (h *PropertyHandler) Quote(c echo.Context) error {
	id, ok, err := propertyID(c)
	if !ok {
		return err
	}
	in, out, ok, err := stayRange(c, c.QueryParam("check_in"), c.QueryParam("check_out"))
	if !ok {
		return err
	}
	q, err := h.svc.Quote(c.Request().Context(), id, in, out)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, q)
}
