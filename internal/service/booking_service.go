// Package service implements the booking lifecycle manager: it is the only
// place where the pure calculators in internal/booking meet the record
// store, the transaction manager and the notification queue.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/metrics"
	"github.com/iliyamo/property-booking/internal/model"
	"github.com/iliyamo/property-booking/internal/queue"
	"github.com/iliyamo/property-booking/internal/repository"
)

// PropertyStore reads properties with their blocked-date set.
type PropertyStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Property, error)
	GetForUpdate(ctx context.Context, id uint64) (*model.Property, error)
}

// BookingStore persists booking records.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetForUpdate(ctx context.Context, id string) (*model.Booking, error)
	GetByConfirmationCode(ctx context.Context, code string) (*model.Booking, error)
	ListByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error)
	ListByProperty(ctx context.Context, propertyID uint64) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, b *model.Booking) error
	CompleteElapsed(ctx context.Context, today time.Time) (int64, error)
}

// BlockedDateStore persists blocked days per owner.
type BlockedDateStore interface {
	ListRows(ctx context.Context, propertyID uint64) ([]model.BlockedDate, error)
	Apply(ctx context.Context, propertyID uint64, bookingID *string, before, after booking.DateSet) error
}

// TxManager runs fn inside one transaction carried by ctx.  It is
// satisfied by *manager.Manager from go-transaction-manager.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier accepts fire-and-forget notifications.
type Notifier interface {
	Notify(n queue.Notification)
}

const (
	codeAttempts = 5
	txAttempts   = 3
)

// Options tunes BookingService.  Zero values fall back to the platform
// defaults.
type Options struct {
	// RequireHostApproval makes every new booking start as pending, on top
	// of the per-property flag.
	RequireHostApproval bool
	Policy              booking.CancelPolicy
	Rates               booking.Rates
	Now                 func() time.Time
	NewCode             func() (string, error)
	Logger              logrus.FieldLogger
}

// BookingService coordinates creation, confirmation and cancellation of
// bookings and the host calendar.
type BookingService struct {
	properties PropertyStore
	bookings   BookingStore
	blocked    BlockedDateStore
	tx         TxManager
	notifier   Notifier

	requireApproval bool
	policy          booking.CancelPolicy
	rates           booking.Rates
	now             func() time.Time
	newCode         func() (string, error)
	log             logrus.FieldLogger
}

// NewBookingService wires the service.  notifier may be nil, in which case
// notifications are dropped.
func NewBookingService(
	properties PropertyStore,
	bookings BookingStore,
	blocked BlockedDateStore,
	tx TxManager,
	notifier Notifier,
	opts Options,
) *BookingService {
	s := &BookingService{
		properties:      properties,
		bookings:        bookings,
		blocked:         blocked,
		tx:              tx,
		notifier:        notifier,
		requireApproval: opts.RequireHostApproval,
		policy:          opts.Policy,
		rates:           opts.Rates,
		now:             opts.Now,
		newCode:         opts.NewCode,
		log:             opts.Logger,
	}
	if s.policy.Window <= 0 {
		s.policy = booking.DefaultCancelPolicy
	}
	if s.rates == (booking.Rates{}) {
		s.rates = booking.DefaultRates
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newCode == nil {
		s.newCode = booking.NewConfirmationCode
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// inTx runs fn in a transaction and runs it again when the database
// reports a deadlock or lock wait timeout.
func (s *BookingService) inTx(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.tx.Do(ctx, fn)
		if err == nil || !repository.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		metrics.IncTxRetry()
		s.log.WithFields(logrus.Fields{"op": op, "attempt": attempt}).WithError(err).Warn("transaction retry")
	}
	return err
}

func (s *BookingService) notify(n queue.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(n)
}

func notification(kind queue.Kind, b *model.Booking, p *model.Property, recipientID uint64, role string) queue.Notification {
	n := queue.NewNotification(kind, recipientID, role)
	n.BookingID = b.ID
	n.ConfirmationCode = b.ConfirmationCode
	n.PropertyID = b.PropertyID
	n.CheckIn = booking.FormatDay(b.CheckIn)
	n.CheckOut = booking.FormatDay(b.CheckOut)
	n.TotalPrice = b.TotalPrice
	if p != nil {
		n.PropertyTitle = p.Title
	}
	return n
}

// Get returns a booking visible to actor: its guest or the property's host.
func (s *BookingService) Get(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, wrapStore("get booking", err)
	}
	return s.visible(ctx, b, actor)
}

// GetByCode looks a booking up by its confirmation code with the same
// visibility rules as Get.  Malformed codes are rejected before the store
// is queried.
func (s *BookingService) GetByCode(ctx context.Context, code string, actor model.Actor) (*model.Booking, error) {
	if !booking.ValidConfirmationCode(code) {
		return nil, invalid("malformed confirmation code %q", code)
	}
	b, err := s.bookings.GetByConfirmationCode(ctx, code)
	if err != nil {
		return nil, wrapStore("get booking by code", err)
	}
	return s.visible(ctx, b, actor)
}

func (s *BookingService) visible(ctx context.Context, b *model.Booking, actor model.Actor) (*model.Booking, error) {
	if b.GuestID == actor.UserID {
		return b, nil
	}
	p, err := s.properties.GetByID(ctx, b.PropertyID)
	if err != nil {
		return nil, wrapStore("get property", err)
	}
	if !actor.IsHost() || p.HostID != actor.UserID {
		return nil, repository.ErrForbidden
	}
	return b, nil
}

// ListForGuest returns the guest's bookings, newest first.
func (s *BookingService) ListForGuest(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	out, err := s.bookings.ListByGuest(ctx, guestID)
	return out, wrapStore("list guest bookings", err)
}

// ListForProperty returns every booking of a property owned by actor.
func (s *BookingService) ListForProperty(ctx context.Context, propertyID uint64, actor model.Actor) ([]model.Booking, error) {
	if _, err := s.ownedProperty(ctx, propertyID, actor); err != nil {
		return nil, err
	}
	out, err := s.bookings.ListByProperty(ctx, propertyID)
	return out, wrapStore("list property bookings", err)
}

// GetProperty returns the public view of a property.
func (s *BookingService) GetProperty(ctx context.Context, id uint64) (*model.Property, error) {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, wrapStore("get property", err)
	}
	return p, nil
}

// CheckAvailability runs the availability calculator against the current
// blocked dates.  The answer is advisory; Create re-checks under a lock.
func (s *BookingService) CheckAvailability(ctx context.Context, propertyID uint64, checkIn, checkOut time.Time) (booking.Availability, error) {
	if err := checkRange(checkIn, checkOut); err != nil {
		return booking.Availability{}, err
	}
	p, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return booking.Availability{}, wrapStore("get property", err)
	}
	return booking.IsAvailable(p.BlockedDates, booking.Truncate(checkIn), booking.Truncate(checkOut)), nil
}

// Quote prices a stay without persisting anything.
func (s *BookingService) Quote(ctx context.Context, propertyID uint64, checkIn, checkOut time.Time) (booking.Pricing, error) {
	if err := checkRange(checkIn, checkOut); err != nil {
		return booking.Pricing{}, err
	}
	p, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return booking.Pricing{}, wrapStore("get property", err)
	}
	return s.rates.Calculate(p.PricePerNight, booking.Nights(booking.Truncate(checkIn), booking.Truncate(checkOut))), nil
}

func (s *BookingService) ownedProperty(ctx context.Context, propertyID uint64, actor model.Actor) (*model.Property, error) {
	p, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, wrapStore("get property", err)
	}
	if !actor.IsHost() || p.HostID != actor.UserID {
		return nil, repository.ErrForbidden
	}
	return p, nil
}

func checkRange(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return invalid("check_in and check_out are required")
	}
	if !booking.Truncate(checkIn).Before(booking.Truncate(checkOut)) {
		return invalid("check_out must be after check_in")
	}
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, booking.ErrAvailabilityConflict) || errors.Is(err, repository.ErrDateTaken)
}
