package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RoleAdmin may read diagnostic inventory records.
const RoleAdmin = "ADMIN"

// RequireRole allows only users whose role claim is one of roles.  It must
// run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
