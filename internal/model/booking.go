package model

import "time"

// BookingStatusConfirmed is the only status a booking is created with.
// There is no cancellation or refund state machine.
const BookingStatusConfirmed = "confirmed"

// Booking is one completed ticket purchase.  Records are written once and
// never updated.
//
// Fields:
//  ID            – internal record id (UUID).
//  TicketID      – human shareable id embedded in the ticket QR code.
//  UID           – owner; empty for anonymous purchases.
//  ShowID        – inventory key the seats were reserved under.
//  TotalAmount   – charged amount in minor currency units.
//  PaymentRef    – payment confirmation token.
//  CheckoutRef   – payment reference of a checkout purchase; at most one
//                  booking per (CheckoutRef, UID).  Empty for bookings
//                  created directly.
type Booking struct {
	ID            string    `json:"id"`
	TicketID      string    `json:"ticket_id"`
	UID           string    `json:"uid"`
	MovieID       string    `json:"movie_id,omitempty"`
	MovieTitle    string    `json:"movie_title,omitempty"`
	Theater       string    `json:"theater"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	ShowID        string    `json:"show_id"`
	Seats         []string  `json:"seats"`
	TotalAmount   int64     `json:"total_amount"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CheckoutRef   string    `json:"-"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
