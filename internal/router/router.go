package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-order-service/internal/handler"
	"github.com/iliyamo/canteen-order-service/internal/middleware"
)

// PublicPaths resolve without a principal.
var PublicPaths = []string{"/", "/health", "/canteen/login"}

// RegisterRoutes registers the endpoints that need no principal.
func RegisterRoutes(e *echo.Echo, a *handler.AuthHandler) {
	e.GET("/", handler.Health)
	e.GET("/health", handler.Health)
	e.POST("/canteen/login", a.Login)
}

// RegisterUser registers the student endpoints: the hold lifecycle, the
// pickup QR of an active order and the order history.
func RegisterUser(e *echo.Echo, h *handler.OrderHandler) {
	user := middleware.RequireUser()

	e.POST("/orders/hold", h.PlaceHold, user)
	e.POST("/orders/hold/:id/confirm", h.ConfirmHold, user)
	e.DELETE("/orders/hold/:id", h.ReleaseHold, user)

	e.GET("/orders/:id/qr", h.QR, user)
	e.GET("/users/get_past_orders", h.PastOrders, user)
}

// RegisterAdmin registers the canteen operator endpoints.  Every route is
// scoped to the operator's own canteen inside the handler.
func RegisterAdmin(e *echo.Echo, h *handler.OrderHandler) {
	admin := middleware.RequireAdmin()

	e.GET("/orders", h.ListOrders, admin)
	// static segment; echo matches it ahead of /orders/:id
	e.POST("/orders/scan", h.Scan, admin)
	e.GET("/orders/:id", h.GetOrder, admin)
	e.PUT("/orders/:id/:action", h.Transition, admin)
}
