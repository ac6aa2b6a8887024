package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/model"
	"github.com/iliyamo/property-booking/internal/repository"
)

// HostCalendar lists every blocked day of a property owned by actor, with
// the owning booking when there is one.
func (s *BookingService) HostCalendar(ctx context.Context, propertyID uint64, actor model.Actor) ([]model.BlockedDate, error) {
	if _, err := s.ownedProperty(ctx, propertyID, actor); err != nil {
		return nil, err
	}
	rows, err := s.blocked.ListRows(ctx, propertyID)
	if err != nil {
		return nil, wrapStore("list blocked dates", err)
	}
	return rows, nil
}

// BlockDates withholds the nights of [from, to) from booking.  Nights that
// are already withheld are kept; nights held by a booking are a conflict.
// It returns the host-withheld days after the change.
func (s *BookingService) BlockDates(ctx context.Context, propertyID uint64, actor model.Actor, from, to time.Time) ([]string, error) {
	return s.withhold(ctx, "block dates", propertyID, actor, from, to, true)
}

// UnblockDates releases host-withheld nights of [from, to).  Nights held
// by bookings are never touched.
func (s *BookingService) UnblockDates(ctx context.Context, propertyID uint64, actor model.Actor, from, to time.Time) ([]string, error) {
	return s.withhold(ctx, "unblock dates", propertyID, actor, from, to, false)
}

func (s *BookingService) withhold(ctx context.Context, op string, propertyID uint64, actor model.Actor, from, to time.Time, block bool) ([]string, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	from, to = booking.Truncate(from), booking.Truncate(to)

	var held booking.DateSet
	err := s.inTx(ctx, op, func(ctx context.Context) error {
		p, err := s.properties.GetForUpdate(ctx, propertyID)
		if err != nil {
			return wrapStore("lock property", err)
		}
		if !actor.IsHost() || p.HostID != actor.UserID {
			return repository.ErrForbidden
		}
		rows, err := s.blocked.ListRows(ctx, propertyID)
		if err != nil {
			return wrapStore("list blocked dates", err)
		}
		host, booked := splitOwners(rows)

		var next booking.DateSet
		if block {
			if avail := booking.IsAvailable(booked, from, to); !avail.Available {
				return &booking.ConflictError{Dates: avail.ConflictDates}
			}
			next = booking.BlockRange(host, from, to)
		} else {
			next = booking.UnblockRange(host, from, to)
		}
		if err := s.blocked.Apply(ctx, propertyID, nil, host, next); err != nil {
			if isConflict(err) {
				return &booking.ConflictError{}
			}
			return wrapStore(op, err)
		}
		held = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"property_id": propertyID,
		"from":        booking.FormatDay(from),
		"to":          booking.FormatDay(to),
		"withheld":    held.Len(),
	}).Info(op)
	return held.Sorted(), nil
}

// splitOwners separates host-withheld days from days held by bookings.
func splitOwners(rows []model.BlockedDate) (host, booked booking.DateSet) {
	host, booked = booking.NewDateSet(), booking.NewDateSet()
	for _, r := range rows {
		if r.BookingID == nil {
			host[r.Day] = struct{}{}
		} else {
			booked[r.Day] = struct{}{}
		}
	}
	return host, booked
}
