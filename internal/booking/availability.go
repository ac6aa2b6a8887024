package booking

import "time"

// Availability is the answer of IsAvailable.  ConflictDates lists, in
// ascending order, every requested night that is already blocked.
type Availability struct {
	Available     bool     `json:"available"`
	ConflictDates []string `json:"conflict_dates"`
}

// IsAvailable checks every night of [checkIn, checkOut) against blocked.
// A night conflicts iff it is a member of blocked.  An empty range
// (checkIn == checkOut) is trivially available; rejecting zero-night stays
// is the caller's job.
func IsAvailable(blocked DateSet, checkIn, checkOut time.Time) Availability {
	conflicts := make([]string, 0)
	for _, d := range Days(checkIn, checkOut) {
		if blocked.Has(d) {
			conflicts = append(conflicts, d)
		}
	}
	return Availability{Available: len(conflicts) == 0, ConflictDates: conflicts}
}
