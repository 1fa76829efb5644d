package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seat-inventory/internal/model"
)

// BookingRepo is the append-only ledger of completed bookings stored in the
// bookings table.  It offers no update or delete.  Reads by user go through
// the (uid, created_at) index; ticket lookups always filter on the owner as
// well so that knowing a ticket id is not enough to read a booking.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	if db == nil {
		panic("nil db passed to NewBookingRepo")
	}
	return &BookingRepo{db: db}
}

// checkoutIndex is the unique index on (checkout_ref, uid).
const checkoutIndex = "uq_bookings_checkout"

const bookingColumns = `id, ticket_id, uid, movie_id, movie_title, theater, show_date, show_time,
                        show_id, seats, total_amount, payment_ref, payment_method, status, created_at,
                        checkout_ref`

// Create inserts b.  ID, TicketID, Status and CreatedAt must already be set.
// A second booking for the same CheckoutRef and UID returns
// ErrDuplicateCheckout, a ticket id collision ErrDuplicateTicket.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	seats, err := json.Marshal(b.Seats)
	if err != nil {
		return err
	}
	const q = `INSERT INTO bookings (` + bookingColumns + `)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		b.ID, b.TicketID, b.UID, b.MovieID, b.MovieTitle, b.Theater, b.Date, b.Time,
		b.ShowID, seats, b.TotalAmount, b.PaymentRef, b.PaymentMethod, b.Status, b.CreatedAt.UTC(),
		sql.NullString{String: b.CheckoutRef, Valid: b.CheckoutRef != ""},
	)
	if err != nil {
		if duplicateOn(err, checkoutIndex) {
			return fmt.Errorf("%w: %s", ErrDuplicateCheckout, b.CheckoutRef)
		}
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateTicket, b.TicketID)
		}
		return err
	}
	return nil
}

// ListByUser returns all bookings of uid, newest first.  An empty slice is
// returned when the user has none.
func (r *BookingRepo) ListByUser(ctx context.Context, uid string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE uid = ?
               ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByTicketAndUser returns the booking with ticketID owned by uid.  A
// missing ticket and a ticket owned by someone else both yield
// ErrBookingNotFound.
func (r *BookingRepo) GetByTicketAndUser(ctx context.Context, ticketID, uid string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE ticket_id = ? AND uid = ?
               LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, ticketID, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// FindByPaymentRef returns the checkout booking of uid recorded under
// paymentRef, or ErrBookingNotFound.
func (r *BookingRepo) FindByPaymentRef(ctx context.Context, uid, paymentRef string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE checkout_ref = ? AND uid = ?
               LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, paymentRef, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var seats []byte
	var createdAt time.Time
	var checkoutRef sql.NullString
	if err := row.Scan(
		&b.ID, &b.TicketID, &b.UID, &b.MovieID, &b.MovieTitle, &b.Theater, &b.Date, &b.Time,
		&b.ShowID, &seats, &b.TotalAmount, &b.PaymentRef, &b.PaymentMethod, &b.Status, &createdAt,
		&checkoutRef,
	); err != nil {
		return nil, err
	}
	b.CreatedAt = createdAt.UTC()
	b.CheckoutRef = checkoutRef.String
	b.Seats = []string{}
	if len(seats) > 0 {
		if err := json.Unmarshal(seats, &b.Seats); err != nil {
			return nil, fmt.Errorf("decode seats for booking %s: %w", b.ID, err)
		}
	}
	return &b, nil
}
