package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one decoded booking event.  A returned error rejects the
// message without requeue.
type Handler func(ctx context.Context, ev BookingConfirmedEvent) error

// StartBookingConsumer consumes the booking.confirmed queue until ctx is
// cancelled, reconnecting with exponential backoff whenever the broker is
// unreachable or the delivery channel closes.  It returns ctx.Err().
func StartBookingConsumer(ctx context.Context, url string, handle Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	wait := newReconnectBackOff()
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			d := wait.NextBackOff()
			log.Warn("booking consumer dial failed", zap.Error(err), zap.Duration("retry_in", d))
			if !sleepCtx(ctx, d) {
				return ctx.Err()
			}
			continue
		}
		wait.Reset()

		err = consumeLoop(ctx, conn, handle, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d := wait.NextBackOff()
		log.Warn("booking consumer loop ended, reconnecting", zap.Error(err), zap.Duration("retry_in", d))
		if !sleepCtx(ctx, d) {
			return ctx.Err()
		}
	}
}

// newReconnectBackOff starts near one second and caps at thirty.
func newReconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.Reset()
	return b
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, handle Handler, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("booking consumer set qos failed", zap.Error(err))
	}
	if err := declareBookingQueue(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	log.Info("booking consumer started", zap.String("queue", BookingConfirmedQueue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, d.Body, handle); err != nil {
				log.Error("booking consumer rejected message", zap.String("message_id", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(ctx context.Context, body []byte, handle Handler) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.TicketID == "" {
		return errors.New("event has no ticket id")
	}
	return handle(ctx, ev)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// AuditLogHandler appends one line per confirmed booking to the file at
// path, creating its directory when needed.
func AuditLogHandler(path string) Handler {
	var mu sync.Mutex
	return func(_ context.Context, ev BookingConfirmedEvent) error {
		mu.Lock()
		defer mu.Unlock()

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("mkdir audit log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer f.Close()

		if _, err := f.WriteString(auditLine(ev)); err != nil {
			return fmt.Errorf("write audit log: %w", err)
		}
		return nil
	}
}

func auditLine(ev BookingConfirmedEvent) string {
	return fmt.Sprintf("[%s] Booking confirmed | ticket_id=%s | uid=%s | show_id=%s | theater=%q | movie=%q | total=%d | payment_ref=%s | seats=[%s]\n",
		ev.ConfirmedAt, ev.TicketID, ev.UID, ev.ShowID, ev.Theater, ev.MovieTitle, ev.TotalAmount, ev.PaymentRef,
		strings.Join(ev.Seats, ","))
}
