// Package router registers the HTTP routes and their middleware.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-inventory/internal/handler"
)

// RegisterRoutes registers the health probes.
func RegisterRoutes(e *echo.Echo, db *sql.DB, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db, rdb))
}

// RegisterShows registers the unauthenticated show endpoints.  cache wraps
// the seat snapshot only; the live stream is never cached.
func RegisterShows(e *echo.Echo, h *handler.ShowHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/show-id", h.ShowID)
	e.GET("/v1/shows/:show_id/seats", h.Seats, cache)
	e.GET("/v1/shows/:show_id/seats/live", h.LiveSeats)
}
