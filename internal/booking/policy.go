package booking

import "time"

// DefaultCancellationWindow is how far ahead of check-in a guest may still
// cancel.
const DefaultCancellationWindow = 48 * time.Hour

// WarningLevel tells the caller how risky a cancellation is.
type WarningLevel string

const (
	WarningNone WarningLevel = "none"
	// WarningLate: inside the cancellation window but before check-in day.
	WarningLate WarningLevel = "late"
	// WarningConfirmRequired: same-day or past check-in; the request must be
	// explicitly acknowledged.
	WarningConfirmRequired WarningLevel = "confirm_required"
)

// CancelDecision is the result of CanCancel.
type CancelDecision struct {
	Allowed bool         `json:"allowed"`
	Warning WarningLevel `json:"warning"`
	// HoursUntilCheckIn is negative once check-in has passed.
	HoursUntilCheckIn float64 `json:"hours_until_check_in"`
}

// CancelPolicy evaluates whether a cancellation may proceed.
type CancelPolicy struct {
	Window time.Duration
}

// DefaultCancelPolicy uses the 48 hour window.
var DefaultCancelPolicy = CancelPolicy{Window: DefaultCancellationWindow}

// CanCancel applies DefaultCancelPolicy.
func CanCancel(now, checkIn time.Time, byHost bool) CancelDecision {
	return DefaultCancelPolicy.CanCancel(now, checkIn, byHost)
}

// CanCancel decides a cancellation requested at now for a stay starting at
// checkIn.  Guests are held to the window.  Hosts may always cancel, but
// inside the window they get a warning, and on or after the check-in day
// the warning demands an explicit acknowledgement.
func (p CancelPolicy) CanCancel(now, checkIn time.Time, byHost bool) CancelDecision {
	until := checkIn.Sub(now)
	d := CancelDecision{HoursUntilCheckIn: until.Hours()}
	if until >= p.Window {
		d.Allowed, d.Warning = true, WarningNone
		return d
	}
	if !byHost {
		d.Allowed, d.Warning = false, WarningLate
		return d
	}
	d.Allowed = true
	if !Truncate(now).Before(Truncate(checkIn)) {
		d.Warning = WarningConfirmRequired
	} else {
		d.Warning = WarningLate
	}
	return d
}
