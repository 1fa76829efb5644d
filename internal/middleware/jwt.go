// Package middleware provides the echo middleware chain: token auth, role
// checks, rate limiting, response caching and request logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-inventory/internal/utils"
)

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")), true
}

// JWTAuth rejects requests without a valid bearer token.  On success the
// user id and role are available through UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxUserID, claims.UID)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT lets anonymous requests through with an empty user id.  A
// token that is present but invalid is still rejected, so a client never
// silently loses its identity.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return next(c)
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxUserID, claims.UID)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}
