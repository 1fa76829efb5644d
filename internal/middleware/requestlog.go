package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger logs every request once it completes.  5xx responses log at
// error level and 4xx at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler settle the status first
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			status := res.Status
			fields := []zap.Field{
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.Int("status", status),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("route", c.Path()),
				zap.String("ip", c.RealIP()),
				zap.String("uid", UserID(c)),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("bytes_out", res.Size),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			switch {
			case status >= 500:
				log.Error("server error", fields...)
			case status >= 400:
				log.Warn("client error", fields...)
			default:
				log.Info("request completed", fields...)
			}
			return nil
		}
	}
}
