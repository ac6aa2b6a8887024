// Package metrics exposes Prometheus counters for the booking engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "property_booking"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created by initial status.",
		},
		[]string{"status"},
	)

	bookingConflict = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflict_total",
			Help:      "Count of booking attempts rejected because dates were blocked.",
		},
	)

	bookingConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_confirmed_total",
			Help:      "Count of pending bookings confirmed by hosts.",
		},
	)

	bookingCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by role.",
		},
		[]string{"role"},
	)

	bookingCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_completed_total",
			Help:      "Count of bookings moved to completed by the sweeper.",
		},
	)

	txRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retry_total",
			Help:      "Count of booking transactions retried after deadlock or lock timeout.",
		},
	)

	notification = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_total",
			Help:      "Count of notifications by kind and outcome (published, failed, dropped).",
		},
		[]string{"kind", "outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingConflict, bookingConfirmed, bookingCancelled,
			bookingCompleted, txRetries, notification,
		)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingConflict() {
	bookingConflict.Inc()
}

func IncBookingConfirmed() {
	bookingConfirmed.Inc()
}

func IncBookingCancelled(role string) {
	bookingCancelled.WithLabelValues(role).Inc()
}

func AddBookingCompleted(n int64) {
	if n > 0 {
		bookingCompleted.Add(float64(n))
	}
}

func IncTxRetry() {
	txRetries.Inc()
}

// IncNotification records the outcome of one notification.
func IncNotification(kind, outcome string) {
	notification.WithLabelValues(kind, outcome).Inc()
}
