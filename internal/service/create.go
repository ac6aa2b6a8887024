package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/metrics"
	"github.com/iliyamo/property-booking/internal/model"
	"github.com/iliyamo/property-booking/internal/queue"
	"github.com/iliyamo/property-booking/internal/repository"
)

// CreateRequest carries everything a guest supplies when booking.
type CreateRequest struct {
	PropertyID      uint64
	GuestID         uint64
	CheckIn         time.Time
	CheckOut        time.Time
	Adults          int
	Children        int
	ContactName     string
	ContactEmail    string
	ContactPhone    string
	SpecialRequests *string
}

func (s *BookingService) validateCreate(req CreateRequest) error {
	if req.PropertyID == 0 {
		return invalid("property_id is required")
	}
	if req.GuestID == 0 {
		return invalid("guest_id is required")
	}
	if err := checkRange(req.CheckIn, req.CheckOut); err != nil {
		return err
	}
	if booking.Truncate(req.CheckIn).Before(booking.Truncate(s.now())) {
		return invalid("check_in %s is in the past", booking.FormatDay(req.CheckIn))
	}
	if req.Adults < 1 {
		return invalid("at least one adult is required")
	}
	if req.Children < 0 {
		return invalid("children cannot be negative")
	}
	return nil
}

// Create books a stay.  The property row is locked for the whole
// transaction, so the availability check and the block write see the same
// blocked-date set; the (property, day) unique key backs that up.  On
// success the guest and the host are notified after commit.
func (s *BookingService) Create(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}
	checkIn, checkOut := booking.Truncate(req.CheckIn), booking.Truncate(req.CheckOut)

	var (
		created *model.Booking
		prop    *model.Property
	)
	err := s.inTx(ctx, "create booking", func(ctx context.Context) error {
		p, err := s.properties.GetForUpdate(ctx, req.PropertyID)
		if err != nil {
			return wrapStore("lock property", err)
		}
		if p.MaxGuests > 0 && req.Adults+req.Children > p.MaxGuests {
			return invalid("%d guests exceed the capacity of %d", req.Adults+req.Children, p.MaxGuests)
		}

		avail := booking.IsAvailable(p.BlockedDates, checkIn, checkOut)
		if !avail.Available {
			return &booking.ConflictError{Dates: avail.ConflictDates}
		}

		price := s.rates.Calculate(p.PricePerNight, booking.Nights(checkIn, checkOut))
		status := model.StatusConfirmed
		if p.RequireHostApproval || s.requireApproval {
			status = model.StatusPending
		}
		b := &model.Booking{
			PropertyID:      p.ID,
			GuestID:         req.GuestID,
			Status:          status,
			CheckIn:         checkIn,
			CheckOut:        checkOut,
			NumberOfNights:  price.Nights,
			Adults:          req.Adults,
			Children:        req.Children,
			PricePerNight:   price.PricePerNight,
			Subtotal:        price.Subtotal,
			ServiceFee:      price.ServiceFee,
			Taxes:           price.Taxes,
			TotalPrice:      price.Total,
			ContactName:     req.ContactName,
			ContactEmail:    req.ContactEmail,
			ContactPhone:    req.ContactPhone,
			SpecialRequests: req.SpecialRequests,
		}
		if err := s.insertWithCode(ctx, b); err != nil {
			return err
		}

		next := booking.BlockRange(p.BlockedDates, checkIn, checkOut)
		if err := s.blocked.Apply(ctx, p.ID, &b.ID, p.BlockedDates, next); err != nil {
			if errors.Is(err, repository.ErrDateTaken) {
				return &booking.ConflictError{}
			}
			return wrapStore("block dates", err)
		}
		created, prop = b, p
		return nil
	})
	if err != nil {
		if isConflict(err) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	metrics.IncBookingCreated(created.Status)
	s.log.WithFields(logrus.Fields{
		"booking_id":  created.ID,
		"property_id": created.PropertyID,
		"guest_id":    created.GuestID,
		"status":      created.Status,
	}).Info("booking created")

	s.notify(notification(queue.KindNewBooking, created, prop, prop.HostID, model.RoleHost))
	// Pending bookings tell the guest once the host confirms.
	if created.Status == model.StatusConfirmed {
		s.notify(notification(queue.KindBookingConfirmed, created, prop, created.GuestID, model.RoleGuest))
	}
	return created, nil
}

// insertWithCode inserts b, drawing a fresh confirmation code whenever the
// previous one was already taken.
func (s *BookingService) insertWithCode(ctx context.Context, b *model.Booking) error {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return fmt.Errorf("generate confirmation code: %w", err)
		}
		b.ConfirmationCode = code
		err = s.bookings.Create(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return wrapStore("insert booking", err)
		}
	}
	return &PersistenceError{Op: "insert booking", Err: repository.ErrDuplicateCode}
}
