package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireUser aborts with 403 unless the request carries a user
// principal.  It assumes Principal ran first.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := CurrentUser(c); !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"status": "error", "error": "user access required"})
			}
			return next(c)
		}
	}
}

// RequireAdmin aborts with 403 unless the request carries a canteen
// operator principal.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := CurrentAdmin(c); !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"status": "error", "error": "admin access required"})
			}
			return next(c)
		}
	}
}
