// Package queue carries booking events over RabbitMQ: the publisher used by
// the booking service and the background consumer that keeps the booking
// audit log.
package queue

import (
	"time"

	"github.com/iliyamo/seat-inventory/internal/model"
)

// BookingConfirmedQueue is the durable queue booking events travel on.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published once a booking record is stored.  It
// carries enough for downstream consumers to log or notify without reading
// the bookings table.
type BookingConfirmedEvent struct {
	BookingID     string   `json:"booking_id"`
	TicketID      string   `json:"ticket_id"`
	UID           string   `json:"uid"`
	ShowID        string   `json:"show_id"`
	MovieID       string   `json:"movie_id,omitempty"`
	MovieTitle    string   `json:"movie_title,omitempty"`
	Theater       string   `json:"theater"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	Seats         []string `json:"seats"`
	TotalAmount   int64    `json:"total_amount"`
	PaymentRef    string   `json:"payment_ref,omitempty"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for a stored booking.
func NewBookingConfirmedEvent(b *model.Booking) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BookingID:     b.ID,
		TicketID:      b.TicketID,
		UID:           b.UID,
		ShowID:        b.ShowID,
		MovieID:       b.MovieID,
		MovieTitle:    b.MovieTitle,
		Theater:       b.Theater,
		Date:          b.Date,
		Time:          b.Time,
		Seats:         b.Seats,
		TotalAmount:   b.TotalAmount,
		PaymentRef:    b.PaymentRef,
		PaymentMethod: b.PaymentMethod,
		ConfirmedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
}
