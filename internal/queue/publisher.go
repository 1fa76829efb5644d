package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends booking events to RabbitMQ.  Each publish opens its own
// connection so a broker outage never leaves a stale channel behind.
type Publisher struct {
	url string
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log}
}

// PublishBookingConfirmed sends ev to the booking.confirmed queue as a
// persistent message.  Errors are logged and returned; callers treat them as
// non-fatal.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declareBookingQueue(ch); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.Error(err))
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.TicketID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", BookingConfirmedQueue, false, false, msg); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.String("ticket_id", ev.TicketID), zap.Error(err))
		return err
	}
	return nil
}

func declareBookingQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		BookingConfirmedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}
