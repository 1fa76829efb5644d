package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-inventory/internal/handler"
	"github.com/iliyamo/seat-inventory/internal/middleware"
)

// RegisterPurchases registers reserve, checkout and booking creation.
// Anonymous callers are allowed and book with an empty uid.  limit guards
// the write endpoints.  Middleware is attached per route so the /v1 groups
// do not fight over the not-found handler.
func RegisterPurchases(e *echo.Echo, r *handler.ReservationHandler, b *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	mw := []echo.MiddlewareFunc{middleware.OptionalJWT(jwtSecret), limit}
	g.POST("/shows/:show_id/reserve", r.Reserve, mw...)
	g.POST("/checkout", r.Checkout, mw...)
	g.POST("/bookings", b.Create, mw...)
}

// RegisterCustomer registers the signed-in user's booking queries.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1")
	auth := middleware.JWTAuth(jwtSecret)
	g.GET("/my-bookings", b.ListMine, auth)
	g.GET("/bookings/:ticket_id", b.GetByTicket, auth)
}
