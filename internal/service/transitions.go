package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/metrics"
	"github.com/iliyamo/property-booking/internal/model"
	"github.com/iliyamo/property-booking/internal/queue"
	"github.com/iliyamo/property-booking/internal/repository"
)

// CancelRequest asks to cancel one booking.  Acknowledged must be set when
// the cancellation happens on or after the check-in day.
type CancelRequest struct {
	BookingID    string
	Actor        model.Actor
	Reason       *string
	Acknowledged bool
}

// lockBooking locks the property and then the booking, in that order, so
// it queues behind any Create running for the same property.
func (s *BookingService) lockBooking(ctx context.Context, id string) (*model.Booking, *model.Property, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, nil, wrapStore("get booking", err)
	}
	p, err := s.properties.GetForUpdate(ctx, b.PropertyID)
	if err != nil {
		return nil, nil, wrapStore("lock property", err)
	}
	b, err = s.bookings.GetForUpdate(ctx, id)
	if err != nil {
		return nil, nil, wrapStore("lock booking", err)
	}
	return b, p, nil
}

// Confirm moves a pending booking to confirmed.  Only the host of the
// property may confirm.  Confirming a confirmed booking is a no-op.
func (s *BookingService) Confirm(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	var (
		out     *model.Booking
		prop    *model.Property
		changed bool
	)
	err := s.inTx(ctx, "confirm booking", func(ctx context.Context) error {
		b, p, err := s.lockBooking(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsHost() || p.HostID != actor.UserID {
			return repository.ErrForbidden
		}
		switch b.Status {
		case model.StatusConfirmed:
			out, prop, changed = b, p, false
			return nil
		case model.StatusPending:
		default:
			return fmt.Errorf("%w: cannot confirm a %s booking", ErrInvalidTransition, b.Status)
		}
		b.Status = model.StatusConfirmed
		if err := s.bookings.UpdateStatus(ctx, b); err != nil {
			return wrapStore("update booking", err)
		}
		out, prop, changed = b, p, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.IncBookingConfirmed()
		s.log.WithFields(logrus.Fields{"booking_id": out.ID, "host_id": actor.UserID}).Info("booking confirmed")
		s.notify(notification(queue.KindBookingConfirmed, out, prop, out.GuestID, model.RoleGuest))
	}
	return out, nil
}

// Cancel cancels a pending or confirmed booking and releases its nights.
// The actor must be the booking's guest or the property's host, and the
// cancellation policy is enforced here.
func (s *BookingService) Cancel(ctx context.Context, req CancelRequest) (*model.Booking, error) {
	var (
		out  *model.Booking
		prop *model.Property
		role string
	)
	err := s.inTx(ctx, "cancel booking", func(ctx context.Context) error {
		b, p, err := s.lockBooking(ctx, req.BookingID)
		if err != nil {
			return err
		}
		byHost, err := cancelRole(b, p, req.Actor)
		if err != nil {
			return err
		}
		if !b.IsActive() {
			return fmt.Errorf("%w: cannot cancel a %s booking", ErrInvalidTransition, b.Status)
		}

		now := s.now()
		d := s.policy.CanCancel(now, b.CheckIn, byHost)
		if !d.Allowed {
			return fmt.Errorf("%w: %.0f hours before check-in", ErrCancellationWindow, d.HoursUntilCheckIn)
		}
		if d.Warning == booking.WarningConfirmRequired && !req.Acknowledged {
			return ErrConfirmationRequired
		}

		by := req.Actor.UserID
		b.Status = model.StatusCancelled
		b.CancelledAt = &now
		b.CancelledBy = &by
		b.CancellationReason = req.Reason
		if err := s.bookings.UpdateStatus(ctx, b); err != nil {
			return wrapStore("update booking", err)
		}

		next := booking.UnblockRange(p.BlockedDates, b.CheckIn, b.CheckOut)
		if err := s.blocked.Apply(ctx, p.ID, &b.ID, p.BlockedDates, next); err != nil {
			return wrapStore("release dates", err)
		}
		out, prop = b, p
		role = model.RoleGuest
		if byHost {
			role = model.RoleHost
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncBookingCancelled(role)
	s.log.WithFields(logrus.Fields{
		"booking_id":   out.ID,
		"cancelled_by": req.Actor.UserID,
		"role":         role,
	}).Info("booking cancelled")

	reason := ""
	if out.CancellationReason != nil {
		reason = *out.CancellationReason
	}
	for _, r := range []struct {
		id   uint64
		role string
	}{{out.GuestID, model.RoleGuest}, {prop.HostID, model.RoleHost}} {
		n := notification(queue.KindBookingCancelled, out, prop, r.id, r.role)
		n.CancelledBy = role
		n.Reason = reason
		s.notify(n)
	}
	return out, nil
}

// CancellationPreview evaluates the cancellation policy for actor without
// changing anything.
func (s *BookingService) CancellationPreview(ctx context.Context, id string, actor model.Actor) (booking.CancelDecision, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return booking.CancelDecision{}, wrapStore("get booking", err)
	}
	p, err := s.properties.GetByID(ctx, b.PropertyID)
	if err != nil {
		return booking.CancelDecision{}, wrapStore("get property", err)
	}
	byHost, err := cancelRole(b, p, actor)
	if err != nil {
		return booking.CancelDecision{}, err
	}
	if !b.IsActive() {
		return booking.CancelDecision{}, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}
	return s.policy.CanCancel(s.now(), b.CheckIn, byHost), nil
}

// cancelRole reports whether actor acts as the host of p.  Actors that are
// neither the guest nor the host get ErrForbidden.
func cancelRole(b *model.Booking, p *model.Property, actor model.Actor) (bool, error) {
	if actor.IsHost() && p.HostID == actor.UserID {
		return true, nil
	}
	if !actor.IsHost() && b.GuestID == actor.UserID {
		return false, nil
	}
	return false, repository.ErrForbidden
}
