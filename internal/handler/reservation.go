package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/middleware"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/service"
	"github.com/iliyamo/seat-inventory/internal/showid"
)

// Reserver commits seat reservations.
type Reserver interface {
	Reserve(ctx context.Context, req service.ReserveRequest) (*service.Reservation, error)
}

// Checkouter reserves seats and records the booking in one call.
type Checkouter interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

type ReservationHandler struct {
	reserver Reserver
	checkout Checkouter
	log      *zap.Logger
}

func NewReservationHandler(reserver Reserver, checkout Checkouter, log *zap.Logger) *ReservationHandler {
	if reserver == nil || checkout == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationHandler{reserver: reserver, checkout: checkout, log: log}
}

type reserveBody struct {
	showid.Parts
	Seats          []string `json:"seats"`
	PaymentRef     string   `json:"payment_ref"`
	IdempotencyKey string   `json:"idempotency_key"`
}

// Reserve handles POST /v1/shows/:show_id/reserve.  The replay key comes
// from the Idempotency-Key header or the idempotency_key field.  A new
// reservation answers 201, a replay 200 and a conflict 409 with the
// conflicting seats.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	var body reserveBody
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return badRequest(c, "invalid request body")
	}
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		key = body.IdempotencyKey
	}
	res, err := h.reserver.Reserve(c.Request().Context(), service.ReserveRequest{
		ShowID: c.Param("show_id"),
		Seats:  body.Seats,
		Meta: model.BookingMeta{
			UID:        middleware.UserID(c),
			PaymentRef: body.PaymentRef,
			MovieID:    body.MovieID,
			MovieTitle: body.MovieTitle,
			Theater:    body.Theater,
			Date:       body.Date,
			Time:       body.Time,
		},
		IdempotencyKey: key,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}

type checkoutBody struct {
	showid.Parts
	ShowID        string   `json:"show_id"`
	Seats         []string `json:"seats"`
	TotalAmount   int64    `json:"total_amount"`
	PaymentRef    string   `json:"payment_ref"`
	PaymentMethod string   `json:"payment_method"`
}

// Checkout handles POST /v1/checkout.  It answers 201 with the new booking,
// or 200 with the existing one when the payment_ref was already used for
// the same seats.
func (h *ReservationHandler) Checkout(c echo.Context) error {
	var body checkoutBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	out, err := h.checkout.Checkout(c.Request().Context(), service.CheckoutRequest{
		UID:           middleware.UserID(c),
		ShowID:        body.ShowID,
		Show:          body.Parts,
		Seats:         body.Seats,
		TotalAmount:   body.TotalAmount,
		PaymentRef:    body.PaymentRef,
		PaymentMethod: body.PaymentMethod,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := http.StatusCreated
	if out.Reservation.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, out)
}
