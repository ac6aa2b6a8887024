// Package booking holds the pure calculators behind the booking engine:
// availability over a property's blocked days, the pricing snapshot, the
// date-block mutator and the cancellation policy.  Nothing in this package
// performs I/O; the lifecycle manager in internal/service feeds it explicit
// inputs read inside a transaction.
package booking

import (
	"fmt"
	"sort"
	"time"
)

// DayLayout is the ISO calendar-day format used for blocked dates.
const DayLayout = "2006-01-02"

const day = 24 * time.Hour

// DateSet is a set of calendar days keyed by their ISO representation.
// Membership is the only semantics; order is irrelevant.
type DateSet map[string]struct{}

// NewDateSet builds a set from ISO day strings.  Duplicates collapse.
func NewDateSet(days ...string) DateSet {
	s := make(DateSet, len(days))
	for _, d := range days {
		s[d] = struct{}{}
	}
	return s
}

// Has reports whether the day is in the set.
func (s DateSet) Has(d string) bool {
	_, ok := s[d]
	return ok
}

// Len returns the number of days in the set.
func (s DateSet) Len() int { return len(s) }

// Clone returns an independent copy of the set.
func (s DateSet) Clone() DateSet {
	out := make(DateSet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}

// Sorted returns the days in ascending order.
func (s DateSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold exactly the same days.
func (s DateSet) Equal(o DateSet) bool {
	if len(s) != len(o) {
		return false
	}
	for d := range s {
		if !o.Has(d) {
			return false
		}
	}
	return true
}

// Difference returns the days in s that are not in o, sorted.
func (s DateSet) Difference(o DateSet) []string {
	out := make([]string, 0)
	for d := range s {
		if !o.Has(d) {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// ParseDay parses an ISO day and returns it as UTC midnight.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return t, nil
}

// FormatDay renders t as an ISO day in UTC.
func FormatDay(t time.Time) string { return t.UTC().Format(DayLayout) }

// Truncate normalises t to UTC midnight of its calendar day.
func Truncate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Days enumerates every calendar day in the half-open range
// [checkIn, checkOut).  The checkout day is never included, so a guest
// leaving on day D does not collide with one arriving on D.
func Days(checkIn, checkOut time.Time) []string {
	from, to := Truncate(checkIn), Truncate(checkOut)
	out := make([]string, 0)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DayLayout))
	}
	return out
}

// Nights returns the number of nights between checkIn and checkOut: the
// ceiling of the elapsed time divided by one day.  Non-positive durations
// yield zero.
//
// Nights and Days agree only for midnight-normalised inputs: Days truncates
// both ends while Nights rounds a partial day up.  Callers pass values
// through Truncate before using either.
func Nights(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return 0
	}
	n := int(d / day)
	if d%day != 0 {
		n++
	}
	return n
}
