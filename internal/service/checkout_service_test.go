package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/showid"
)

type checkoutFixture struct {
	svc          *CheckoutService
	reservations *ReservationService
	store        *MockBookingStore
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := &MockBookingStore{}
	reservations := NewReservationService(newRedisInventory(t), nil, log, 5*time.Second)
	bookings := NewBookingService(store, repository.NewTicketIDGenerator(), nil, log)
	return &checkoutFixture{
		svc:          NewCheckoutService(reservations, bookings, log),
		reservations: reservations,
		store:        store,
	}
}

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		UID: "u1",
		Show: showid.Parts{
			MovieID:    "mv1",
			MovieTitle: "Inception",
			Theater:    "PVR Downtown",
			Date:       "2025-01-10",
			Time:       "7:30 PM",
		},
		Seats:         []string{"A1", "A2"},
		TotalAmount:   500,
		PaymentRef:    "pay_1",
		PaymentMethod: "card",
	}
}

func TestCheckout(t *testing.T) {
	f := newCheckoutFixture(t)

	out, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "mv1__pvr_downtown__2025-01-10__7:30_pm", out.Booking.ShowID)
	assert.Equal(t, []string{"A1", "A2"}, out.Booking.Seats)
	assert.Equal(t, "pay_1", out.Booking.PaymentRef)
	assert.False(t, out.Reservation.Replayed)

	inv, err := f.reservations.Inventory(context.Background(), out.Booking.ShowID)
	require.NoError(t, err)
	assert.Equal(t, "pay_1", inv.LastBookingMeta.PaymentRef)
	assert.Equal(t, "mv1", inv.LastBookingMeta.MovieID)
}

func TestCheckout_RetryReturnsExistingBooking(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	first, err := f.svc.Checkout(ctx, checkoutRequest())
	require.NoError(t, err)
	again, err := f.svc.Checkout(ctx, checkoutRequest())
	require.NoError(t, err)

	assert.True(t, again.Reservation.Replayed)
	assert.Equal(t, first.Booking.TicketID, again.Booking.TicketID)
	assert.Equal(t, 1, f.store.Len())
}

func TestCheckout_PaymentRefOfAnotherUserIsRejected(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, checkoutRequest())
	require.NoError(t, err)

	for _, uid := range []string{"u2", ""} {
		req := checkoutRequest()
		req.UID = uid
		out, err := f.svc.Checkout(ctx, req)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrIdempotencyKeyReused)
	}
	assert.Equal(t, 1, f.store.Len())
	list, err := f.store.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCheckout_ConcurrentRetryRecordsOneBooking(t *testing.T) {
	f := newCheckoutFixture(t)
	f.store.CreateFunc = func(context.Context, *model.Booking) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}

	const attempts = 2
	results := make([]*CheckoutResult, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Checkout(context.Background(), checkoutRequest())
		}(i)
	}
	wg.Wait()

	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, results[0].Booking.TicketID, results[1].Booking.TicketID)
	assert.Equal(t, 1, f.store.Len())
}

func TestCheckout_BookingWriteFailureThenRecovery(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	fail := true
	f.store.CreateFunc = func(context.Context, *model.Booking) error {
		if fail {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := f.svc.Checkout(ctx, checkoutRequest())
	require.ErrorIs(t, err, ErrBookingWriteFailure)
	var bwf *BookingWriteFailureError
	require.ErrorAs(t, err, &bwf)
	assert.Equal(t, []string{"A1", "A2"}, bwf.Seats)
	assert.Equal(t, "pay_1", bwf.PaymentRef)
	assert.Equal(t, 0, f.store.Len())

	// seats stay reserved for the failed purchase
	other := checkoutRequest()
	other.PaymentRef = "pay_2"
	_, err = f.svc.Checkout(ctx, other)
	assert.True(t, IsConflictError(err))

	fail = false
	out, err := f.svc.Checkout(ctx, checkoutRequest())
	require.NoError(t, err)
	assert.True(t, out.Reservation.Replayed)
	assert.Equal(t, int64(1), out.Reservation.Version)
	assert.Equal(t, 1, f.store.Len())
}

func TestCheckout_ConflictCreatesNoBooking(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, checkoutRequest())
	require.NoError(t, err)

	req := checkoutRequest()
	req.PaymentRef = "pay_2"
	req.Seats = []string{"A2", "A3"}
	_, err = f.svc.Checkout(ctx, req)
	var conflict *SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A2"}, conflict.Seats)
	assert.Equal(t, 1, f.store.Len())
}

func TestCheckout_Validation(t *testing.T) {
	f := newCheckoutFixture(t)

	req := checkoutRequest()
	req.PaymentRef = " "
	_, err := f.svc.Checkout(context.Background(), req)
	assert.True(t, IsValidationError(err))

	req = checkoutRequest()
	req.Seats = []string{}
	_, err = f.svc.Checkout(context.Background(), req)
	assert.True(t, IsValidationError(err))
}
