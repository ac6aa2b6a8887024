package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/metrics"
)

// Publisher delivers one notification to the broker.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Notification outcomes recorded in metrics.
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// Dispatcher decouples booking requests from the broker.  Notify queues
// the notification in a bounded buffer and returns at once; worker
// goroutines publish in the background.  Failures are logged and counted,
// never reported to the caller.
type Dispatcher struct {
	pub     Publisher
	log     logrus.FieldLogger
	timeout time.Duration
	queue   chan Notification
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines draining a buffer of the given
// size.
func NewDispatcher(pub Publisher, workers, buffer int, log logrus.FieldLogger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Dispatcher{
		pub:     pub,
		log:     log,
		timeout: 5 * time.Second,
		queue:   make(chan Notification, buffer),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Notify enqueues n.  When the buffer is full or the dispatcher is closed
// the notification is dropped.
func (d *Dispatcher) Notify(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(n, "dispatcher closed")
		return
	}
	select {
	case d.queue <- n:
	default:
		d.drop(n, "buffer full")
	}
}

func (d *Dispatcher) drop(n Notification, why string) {
	metrics.IncNotification(string(n.Kind), OutcomeDropped)
	d.log.WithFields(logrus.Fields{
		"kind":       n.Kind,
		"booking_id": n.BookingID,
		"recipient":  n.RecipientID,
	}).Warn("notification dropped: " + why)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.pub.Publish(ctx, n)
		cancel()
		if err != nil {
			metrics.IncNotification(string(n.Kind), OutcomeFailed)
			d.log.WithFields(logrus.Fields{
				"kind":       n.Kind,
				"booking_id": n.BookingID,
				"recipient":  n.RecipientID,
			}).WithError(err).Error("notification publish failed")
			continue
		}
		metrics.IncNotification(string(n.Kind), OutcomePublished)
	}
}

// Close stops accepting notifications and waits until the buffer has been
// drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}
