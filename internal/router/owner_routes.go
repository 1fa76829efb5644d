package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-inventory/internal/handler"
	"github.com/iliyamo/seat-inventory/internal/middleware"
)

// RegisterAdmin registers diagnostic endpoints for the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.ShowHandler, jwtSecret string) {
	e.GET("/v1/admin/shows/:show_id/inventory", h.Inventory,
		middleware.JWTAuth(jwtSecret), middleware.RequireRole(middleware.RoleAdmin))
}
