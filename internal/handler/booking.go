package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/middleware"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/service"
)

// Bookings is the booking record workflow.
type Bookings interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
	ListUserBookings(ctx context.Context, uid string) ([]model.Booking, error)
	GetBookingByTicket(ctx context.Context, ticketID, uid string) (*model.Booking, error)
}

type BookingHandler struct {
	bookings Bookings
	log      *zap.Logger
}

func NewBookingHandler(bookings Bookings, log *zap.Logger) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{bookings: bookings, log: log}
}

type createBookingBody struct {
	MovieID       string   `json:"movie_id"`
	MovieTitle    string   `json:"movie_title"`
	Theater       string   `json:"theater"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	ShowID        string   `json:"show_id"`
	Seats         []string `json:"seats"`
	TotalAmount   int64    `json:"total_amount"`
	PaymentRef    string   `json:"payment_ref"`
	PaymentMethod string   `json:"payment_method"`
}

// Create handles POST /v1/bookings for seats that were reserved separately.
// Each call creates a new record.
func (h *BookingHandler) Create(c echo.Context) error {
	var body createBookingBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	b, err := h.bookings.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		UID:           middleware.UserID(c),
		MovieID:       body.MovieID,
		MovieTitle:    body.MovieTitle,
		Theater:       body.Theater,
		Date:          body.Date,
		Time:          body.Time,
		ShowID:        body.ShowID,
		Seats:         body.Seats,
		TotalAmount:   body.TotalAmount,
		PaymentRef:    body.PaymentRef,
		PaymentMethod: body.PaymentMethod,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	list, err := h.bookings.ListUserBookings(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// GetByTicket handles GET /v1/bookings/:ticket_id.  Tickets of other users
// answer 404 like unknown tickets.
func (h *BookingHandler) GetByTicket(c echo.Context) error {
	b, err := h.bookings.GetBookingByTicket(c.Request().Context(), c.Param("ticket_id"), middleware.UserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}
