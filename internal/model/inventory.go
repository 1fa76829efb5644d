package model

import (
	"slices"
	"time"
)

// BookingMeta is the diagnostic snapshot of the most recent successful
// reservation on a show.  It is stored on the inventory record and never
// used for authorization.
//
// Fields:
//  UID            – user who reserved (empty for anonymous flows).
//  PaymentRef     – payment confirmation token supplied by the caller.
//  MovieID        – movie identity as supplied by the client.
//  SeatCount      – number of seats in that reservation.
//  IdempotencyKey – client supplied replay key, if any.
type BookingMeta struct {
	UID            string `json:"uid,omitempty"`
	PaymentRef     string `json:"payment_ref,omitempty"`
	MovieID        string `json:"movie_id,omitempty"`
	MovieTitle     string `json:"movie_title,omitempty"`
	Theater        string `json:"theater,omitempty"`
	Date           string `json:"date,omitempty"`
	Time           string `json:"time,omitempty"`
	SeatCount      int    `json:"seat_count"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// SeatInventory is the per-show record of booked seats.  A Version of zero
// means no reservation has been committed for the show yet; such a record
// is returned for absent rows instead of an error.
//
// BookedSeats keeps commit order and holds each seat code once.
// IdempotencyKeys maps a replay key to what was committed under it.
type SeatInventory struct {
	ShowID          string                      `json:"show_id"`
	BookedSeats     []string                    `json:"booked_seats"`
	Version         int64                       `json:"version"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	LastBookingMeta *BookingMeta                `json:"last_booking_meta,omitempty"`
	IdempotencyKeys map[string]IdempotencyEntry `json:"idempotency_keys,omitempty"`
}

// IdempotencyEntry records a committed reservation and its owner.  Only the
// same owner presenting the same seats and payment reference may replay it.
type IdempotencyEntry struct {
	Seats      []string `json:"seats"`
	UID        string   `json:"uid,omitempty"`
	PaymentRef string   `json:"payment_ref,omitempty"`
}

// NewSeatInventory returns the empty record for showID.
func NewSeatInventory(showID string) *SeatInventory {
	return &SeatInventory{ShowID: showID, BookedSeats: []string{}}
}

// Exists reports whether anything has been committed for the show.
func (s *SeatInventory) Exists() bool { return s != nil && s.Version > 0 }

// Has reports whether seat is booked.
func (s *SeatInventory) Has(seat string) bool {
	return slices.Contains(s.BookedSeats, seat)
}

// Conflicts returns the requested seats that are already booked, in request
// order.
func (s *SeatInventory) Conflicts(seats []string) []string {
	booked := make(map[string]struct{}, len(s.BookedSeats))
	for _, b := range s.BookedSeats {
		booked[b] = struct{}{}
	}
	var out []string
	for _, seat := range seats {
		if _, ok := booked[seat]; ok {
			out = append(out, seat)
		}
	}
	return out
}

// Clone returns a deep copy so callers can mutate it freely.
func (s *SeatInventory) Clone() *SeatInventory {
	if s == nil {
		return nil
	}
	c := *s
	c.BookedSeats = append([]string{}, s.BookedSeats...)
	if s.LastBookingMeta != nil {
		m := *s.LastBookingMeta
		c.LastBookingMeta = &m
	}
	if s.IdempotencyKeys != nil {
		c.IdempotencyKeys = make(map[string]IdempotencyEntry, len(s.IdempotencyKeys))
		for k, v := range s.IdempotencyKeys {
			v.Seats = append([]string{}, v.Seats...)
			c.IdempotencyKeys[k] = v
		}
	}
	return &c
}
