// Package queue carries booking notifications over RabbitMQ: the payload,
// a non-blocking dispatcher, the publisher and the consumer.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Kind names the template a notification is rendered with.
type Kind string

const (
	// KindNewBooking goes to the host when a guest books a property.
	KindNewBooking Kind = "new_booking"
	// KindBookingConfirmed goes to the guest once the stay is confirmed.
	KindBookingConfirmed Kind = "booking_confirmed"
	// KindBookingCancelled goes to both parties; RecipientRole tells the
	// template which side it is addressing.
	KindBookingCancelled Kind = "booking_cancelled"
)

// Notification is published to the booking.notifications queue after a
// booking transaction commits.  Delivery is best effort: nothing in the
// booking flow waits for it or inspects the outcome.
type Notification struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"kind"`
	RecipientID      uint64    `json:"recipient_id"`
	RecipientRole    string    `json:"recipient_role"`
	BookingID        string    `json:"booking_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	PropertyID       uint64    `json:"property_id"`
	PropertyTitle    string    `json:"property_title,omitempty"`
	CheckIn          string    `json:"check_in"`
	CheckOut         string    `json:"check_out"`
	TotalPrice       int64     `json:"total_price"`
	CancelledBy      string    `json:"cancelled_by,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// NameQueue is the durable queue notifications are published to.
const NameQueue = "booking.notifications"

// NewNotification stamps a fresh notification for one recipient.
func NewNotification(kind Kind, recipientID uint64, role string) Notification {
	return Notification{
		ID:            uuid.NewString(),
		Kind:          kind,
		RecipientID:   recipientID,
		RecipientRole: role,
		CreatedAt:     time.Now().UTC(),
	}
}
