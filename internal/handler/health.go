package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is the liveness probe.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready pings MySQL and, when configured, Redis.
func Ready(db *sql.DB, rdb *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		checks := echo.Map{"mysql": "ok"}
		status := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			checks["mysql"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		return c.JSON(status, checks)
	}
}
