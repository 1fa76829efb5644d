package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/seat-inventory/internal/repository"
)

var (
	// ErrInvalidRequest is wrapped by every input validation failure.  It is
	// always raised before any store is touched.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrIdempotencyKeyReused means a replay key was presented again by a
	// different user or with a different seat set or payment reference.
	ErrIdempotencyKeyReused = fmt.Errorf("%w: idempotency key reused with a different request", ErrInvalidRequest)

	// ErrSeatConflict matches any *SeatConflictError.
	ErrSeatConflict = errors.New("seats already booked")

	// ErrStoreUnavailable wraps failures of the inventory or booking store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrBookingWriteFailure matches any *BookingWriteFailureError.
	ErrBookingWriteFailure = errors.New("booking record could not be written")
)

// SeatConflictError lists the requested seats that were already booked when
// the reservation was checked.  Nothing was written.
type SeatConflictError struct {
	ShowID string
	Seats  []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats already booked for show %s: %s", e.ShowID, strings.Join(e.Seats, ", "))
}

func (e *SeatConflictError) Is(target error) bool { return target == ErrSeatConflict }

// BookingWriteFailureError is returned when seats were reserved but the
// booking record could not be stored.  The seats stay reserved; a retry with
// the same payment reference writes the missing record.
type BookingWriteFailureError struct {
	ShowID     string
	Seats      []string
	PaymentRef string
	Err        error
}

func (e *BookingWriteFailureError) Error() string {
	return fmt.Sprintf("seats %s on show %s reserved under payment %s but booking was not saved: %v",
		strings.Join(e.Seats, ", "), e.ShowID, e.PaymentRef, e.Err)
}

func (e *BookingWriteFailureError) Unwrap() []error { return []error{ErrBookingWriteFailure, e.Err} }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func storeUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsConflictError checks if the error is a seat conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSeatConflict)
}

// IsNotFoundError checks if the error is a missing booking
func IsNotFoundError(err error) bool {
	return errors.Is(err, repository.ErrBookingNotFound)
}
