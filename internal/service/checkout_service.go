package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/showid"
)

// CheckoutRequest is a paid purchase.  ShowID may be left empty, in which
// case it is derived from Show.
type CheckoutRequest struct {
	UID           string
	ShowID        string
	Show          showid.Parts
	Seats         []string
	TotalAmount   int64
	PaymentRef    string
	PaymentMethod string
}

type CheckoutResult struct {
	Reservation *Reservation   `json:"reservation"`
	Booking     *model.Booking `json:"booking"`
}

// CheckoutService reserves seats and records the booking in one call.  The
// payment reference doubles as the reservation's idempotency key, so a
// client retry after a lost response or a failed booking write completes
// the purchase instead of conflicting with itself.
type CheckoutService struct {
	reservations *ReservationService
	bookings     *BookingService
	log          *zap.Logger
}

func NewCheckoutService(reservations *ReservationService, bookings *BookingService, log *zap.Logger) *CheckoutService {
	if reservations == nil || bookings == nil {
		panic("nil dependency passed to NewCheckoutService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutService{reservations: reservations, bookings: bookings, log: log}
}

func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	showID := strings.TrimSpace(req.ShowID)
	if showID == "" {
		showID = showid.Build(req.Show)
	}
	paymentRef := strings.TrimSpace(req.PaymentRef)
	if paymentRef == "" {
		return nil, invalid("payment reference is required")
	}
	if req.TotalAmount < 0 {
		return nil, invalid("total amount must not be negative")
	}

	res, err := s.reservations.Reserve(ctx, ReserveRequest{
		ShowID: showID,
		Seats:  req.Seats,
		Meta: model.BookingMeta{
			UID:        req.UID,
			PaymentRef: paymentRef,
			MovieID:    req.Show.MovieID,
			MovieTitle: req.Show.MovieTitle,
			Theater:    req.Show.Theater,
			Date:       req.Show.Date,
			Time:       req.Show.Time,
		},
		IdempotencyKey: paymentRef,
	})
	if err != nil {
		return nil, err
	}

	// The seats are committed; finish the booking even if the client leaves.
	ctx = context.WithoutCancel(ctx)

	if res.Replayed {
		existing, err := s.bookings.FindByPaymentRef(ctx, req.UID, paymentRef)
		if err == nil {
			return &CheckoutResult{Reservation: res, Booking: existing}, nil
		}
		if !errors.Is(err, repository.ErrBookingNotFound) {
			return nil, err
		}
		s.log.Info("completing booking for replayed reservation",
			zap.String("show_id", showID), zap.String("payment_ref", paymentRef))
	}

	b, err := s.bookings.CreateBooking(ctx, CreateBookingInput{
		UID:           req.UID,
		MovieID:       req.Show.MovieID,
		MovieTitle:    req.Show.MovieTitle,
		Theater:       req.Show.Theater,
		Date:          req.Show.Date,
		Time:          req.Show.Time,
		ShowID:        showID,
		Seats:         res.Reserved,
		TotalAmount:   req.TotalAmount,
		PaymentRef:    paymentRef,
		PaymentMethod: req.PaymentMethod,
		CheckoutRef:   paymentRef,
	})
	if errors.Is(err, repository.ErrDuplicateCheckout) {
		// a concurrent retry of the same purchase wrote it first
		existing, findErr := s.bookings.FindByPaymentRef(ctx, req.UID, paymentRef)
		if findErr == nil {
			return &CheckoutResult{Reservation: res, Booking: existing}, nil
		}
		err = findErr
	}
	if err != nil {
		s.log.Error("booking write failed after seats were reserved",
			zap.String("show_id", showID), zap.Strings("seats", res.Reserved),
			zap.String("payment_ref", paymentRef), zap.String("uid", req.UID), zap.Error(err))
		return nil, &BookingWriteFailureError{ShowID: showID, Seats: res.Reserved, PaymentRef: paymentRef, Err: err}
	}
	return &CheckoutResult{Reservation: res, Booking: b}, nil
}
