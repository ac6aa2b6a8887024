package model

import (
	"time"

	"github.com/iliyamo/property-booking/internal/booking"
)

// Property is a rentable listing owned by a host.  The booking engine only
// reads the fields below; listing content (photos, description, amenities)
// lives elsewhere.
//
// Fields:
//  ID                  – primary key identifier.
//  HostID              – user ID of the host who owns the listing.
//  Title               – display name.
//  PricePerNight       – nightly price in whole currency units.
//  MaxGuests           – combined adults+children capacity (0 = unchecked).
//  RequireHostApproval – when true new bookings start as pending.
//  BlockedDates        – days that cannot be newly booked; materialised
//                        from the blocked_dates table, never stored inline.
type Property struct {
	ID                  uint64          `json:"id"`                    // properties.id
	HostID              uint64          `json:"host_id"`               // properties.host_id
	Title               string          `json:"title"`                 // properties.title
	PricePerNight       int64           `json:"price_per_night"`       // properties.price_per_night
	MaxGuests           int             `json:"max_guests"`            // properties.max_guests
	RequireHostApproval bool            `json:"require_host_approval"` // properties.require_host_approval
	BlockedDates        booking.DateSet `json:"-"`
	CreatedAt           time.Time       `json:"created_at"` // properties.created_at
	UpdatedAt           time.Time       `json:"updated_at"` // properties.updated_at
}

// BlockedDate is one row of blocked_dates.  The pair (PropertyID, Day) is
// unique, which makes double booking a constraint violation rather than a
// race.  BookingID is nil for days withheld by the host.
type BlockedDate struct {
	PropertyID uint64  // blocked_dates.property_id
	Day        string  // blocked_dates.day (YYYY-MM-DD)
	BookingID  *string // blocked_dates.booking_id (nullable)
}
