package booking

import (
	"errors"
	"strings"
)

// ErrAvailabilityConflict is returned when a requested stay overlaps
// blocked days.  Use errors.As with *ConflictError to get the dates.
var ErrAvailabilityConflict = errors.New("availability conflict")

// ConflictError names the blocked nights that prevented a booking.
type ConflictError struct {
	Dates []string
}

func (e *ConflictError) Error() string {
	if len(e.Dates) == 0 {
		return ErrAvailabilityConflict.Error()
	}
	return ErrAvailabilityConflict.Error() + ": " + strings.Join(e.Dates, ",")
}

// Is lets errors.Is(err, ErrAvailabilityConflict) match.
func (e *ConflictError) Is(target error) bool { return target == ErrAvailabilityConflict }
