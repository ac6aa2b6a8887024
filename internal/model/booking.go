package model

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Booking is a guest's reservation of a property for the half-open stay
// [CheckIn, CheckOut).  The price fields are a snapshot taken at creation
// and are not affected by later price changes on the property.
type Booking struct {
	ID               string    `json:"id" validate:"required"`
	PropertyID       uint64    `json:"property_id" validate:"required"`
	GuestID          uint64    `json:"guest_id" validate:"required"`
	ConfirmationCode string    `json:"confirmation_code" validate:"required,len=10"`
	Status           string    `json:"status" validate:"required,oneof=pending confirmed cancelled completed"`
	CheckIn          time.Time `json:"check_in" validate:"required"`
	CheckOut         time.Time `json:"check_out" validate:"required,gtfield=CheckIn"`
	NumberOfNights   int       `json:"number_of_nights" validate:"gte=1"`
	Adults           int       `json:"adults" validate:"gte=0"`
	Children         int       `json:"children" validate:"gte=0"`

	PricePerNight int64 `json:"price_per_night" validate:"gt=0"`
	Subtotal      int64 `json:"subtotal" validate:"gte=0"`
	ServiceFee    int64 `json:"service_fee" validate:"gte=0"`
	Taxes         int64 `json:"taxes" validate:"gte=0"`
	TotalPrice    int64 `json:"total_price" validate:"gte=0"`

	ContactName     string  `json:"contact_name"`
	ContactEmail    string  `json:"contact_email" validate:"omitempty,email"`
	ContactPhone    string  `json:"contact_phone"`
	SpecialRequests *string `json:"special_requests,omitempty"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *uint64    `json:"cancelled_by,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var recordValidator = validator.New()

// Validate checks required fields and ranges.  Repositories call it on every
// row they scan or write so that malformed records never reach the
// lifecycle manager.
func (b *Booking) Validate() error {
	return recordValidator.Struct(b)
}

// IsActive reports whether the booking still holds its dates.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// Guests is the combined party size.
func (b *Booking) Guests() int { return b.Adults + b.Children }
