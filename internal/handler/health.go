package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness check served on / and /health.  It needs no
// principal.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
