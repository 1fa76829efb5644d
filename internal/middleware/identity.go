package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth and OptionalJWT.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get(ctxUserID).(string)
	return s
}

// Role returns the authenticated user's role, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}
