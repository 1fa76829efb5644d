package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/service"
)

// writeError maps service errors onto HTTP responses.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var conflict *service.SeatConflictError
	var writeFailure *service.BookingWriteFailureError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":             "seats already booked",
			"conflicting_seats": conflict.Seats,
		})
	case errors.As(err, &writeFailure):
		log.Error("booking write failure returned to client",
			zap.String("show_id", writeFailure.ShowID),
			zap.Strings("seats", writeFailure.Seats),
			zap.String("payment_ref", writeFailure.PaymentRef),
			zap.Error(writeFailure.Err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":            "seats were reserved but the booking could not be saved; retry with the same payment_ref or contact support",
			"support_required": true,
			"show_id":          writeFailure.ShowID,
			"seats":            writeFailure.Seats,
			"payment_ref":      writeFailure.PaymentRef,
		})
	case service.IsValidationError(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case service.IsNotFoundError(err):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Warn("store unavailable", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable, try again"})
	default:
		log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
