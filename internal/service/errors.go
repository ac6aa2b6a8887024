package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/property-booking/internal/repository"
)

var (
	// ErrValidation is returned for malformed requests (bad date range,
	// guest counts, capacity).
	ErrValidation = errors.New("invalid booking request")
	// ErrInvalidTransition is returned when the booking's current status
	// does not allow the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCancellationWindow rejects guest cancellations inside the window.
	ErrCancellationWindow = errors.New("cancellation window has passed")
	// ErrConfirmationRequired rejects same-day or past check-in
	// cancellations that were not acknowledged.
	ErrConfirmationRequired = errors.New("cancellation must be acknowledged")
)

// PersistenceError reports a record-store failure.  The transaction it
// happened in has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// wrapStore leaves domain sentinels from the repositories alone and turns
// everything else into a *PersistenceError.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrForbidden),
		errors.Is(err, repository.ErrDateTaken),
		errors.Is(err, repository.ErrDuplicateCode):
		return fmt.Errorf("%s: %w", op, err)
	}
	return &PersistenceError{Op: op, Err: err}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
