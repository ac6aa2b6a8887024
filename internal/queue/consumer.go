package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Deliverer hands a notification to its final transport.
type Deliverer interface {
	Deliver(n Notification) error
}

// FileDeliverer appends one line per notification to
// <Dir>/notifications.log.  It stands in for a push transport.
type FileDeliverer struct {
	Dir string
	mu  sync.Mutex
}

// Deliver writes n to the log file, creating the directory when missing.
func (f *FileDeliverer) Deliver(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	fh, err := os.OpenFile(filepath.Join(dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer fh.Close()

	if _, err := fh.WriteString(formatLine(n)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(n Notification) string {
	line := fmt.Sprintf("[%s] %s | to=%s:%d | booking=%s | code=%s | property=%d \"%s\" | stay=%s..%s | total=%d",
		n.CreatedAt.UTC().Format(time.RFC3339), n.Kind, n.RecipientRole, n.RecipientID,
		n.BookingID, n.ConfirmationCode, n.PropertyID, n.PropertyTitle, n.CheckIn, n.CheckOut, n.TotalPrice)
	if n.Kind == KindBookingCancelled {
		line += fmt.Sprintf(" | cancelled_by=%s | reason=\"%s\"", n.CancelledBy, n.Reason)
	}
	return line + "\n"
}

// StartNotificationConsumer consumes the notifications queue and hands
// every message to d until ctx is cancelled.  Broker failures trigger a
// reconnect with exponential backoff capped at 30s.  Messages that cannot
// be decoded or delivered are rejected without requeue.
func StartNotificationConsumer(ctx context.Context, url string, d Deliverer, log logrus.FieldLogger) error {
	if url == "" {
		url = DefaultURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("queue", NameQueue)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("consumer: dial failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, d, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.WithError(err).Warn("consumer: loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, d Deliverer, log logrus.FieldLogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(NameQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(NameQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(m.Body, d); err != nil {
				log.WithError(err).Error("consumer: handle message failed")
				_ = m.Nack(false, false)
				continue
			}
			_ = m.Ack(false)
		}
	}
}

func handleMessage(body []byte, d Deliverer) error {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if n.Kind == "" || n.RecipientID == 0 {
		return fmt.Errorf("notification %q: missing kind or recipient", n.ID)
	}
	return d.Deliver(n)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
