package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/metrics"
)

// CompleteElapsed marks confirmed bookings whose checkout day has arrived
// as completed.  Their nights stay blocked; they are history, not free.
func (s *BookingService) CompleteElapsed(ctx context.Context) (int64, error) {
	n, err := s.bookings.CompleteElapsed(ctx, booking.Truncate(s.now()))
	if err != nil {
		return 0, wrapStore("complete bookings", err)
	}
	metrics.AddBookingCompleted(n)
	if n > 0 {
		s.log.WithField("count", n).Info("bookings completed")
	}
	return n, nil
}

// Completer is the part of BookingService the sweeper drives.
type Completer interface {
	CompleteElapsed(ctx context.Context) (int64, error)
}

// RunSweeper calls CompleteElapsed once immediately and then every
// interval until ctx is cancelled.  Failures are logged and the loop keeps
// going.
func RunSweeper(ctx context.Context, c Completer, interval time.Duration, log logrus.FieldLogger) error {
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := c.CompleteElapsed(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("completion sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
