package booking

import "time"

// BlockRange returns current plus every night of [checkIn, checkOut).  The
// input set is left untouched.
func BlockRange(current DateSet, checkIn, checkOut time.Time) DateSet {
	next := current.Clone()
	for _, d := range Days(checkIn, checkOut) {
		next[d] = struct{}{}
	}
	return next
}

// UnblockRange returns current minus every night of [checkIn, checkOut).
// Callers must pass the exact range that was blocked for the booking being
// released; other blocked days are kept.
func UnblockRange(current DateSet, checkIn, checkOut time.Time) DateSet {
	next := current.Clone()
	for _, d := range Days(checkIn, checkOut) {
		delete(next, d)
	}
	return next
}
