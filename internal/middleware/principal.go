package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-order-service/internal/auth"
	"github.com/iliyamo/canteen-order-service/internal/model"
)

// PrincipalKey is the echo context key the resolved principal is stored
// under.
const PrincipalKey = "principal"

type PrincipalResolver interface {
	Resolve(ctx context.Context, bearer string) (model.Principal, error)
}

// Principal resolves the bearer token of every request into a principal
// and stores it under PrincipalKey.  Paths in public skip resolution.
// Requests without a usable token get 401.
func Principal(resolver PrincipalResolver, logger *zap.Logger, public ...string) echo.MiddlewareFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if open[c.Request().URL.Path] {
				return next(c)
			}

			// A valid header starts with "Bearer " followed by the token.
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"status": "error", "error": "missing bearer token"})
			}

			p, err := resolver.Resolve(c.Request().Context(), header[7:])
			if errors.Is(err, auth.ErrUnauthenticated) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"status": "error", "error": "invalid token"})
			}
			if err != nil {
				logger.Error("resolve principal", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "error": "internal error"})
			}

			c.Set(PrincipalKey, p)
			return next(c)
		}
	}
}

// CurrentUser returns the user principal of the request, if any.
func CurrentUser(c echo.Context) (model.UserPrincipal, bool) {
	u, ok := c.Get(PrincipalKey).(model.UserPrincipal)
	return u, ok
}

// CurrentAdmin returns the operator principal of the request, if any.
func CurrentAdmin(c echo.Context) (model.AdminPrincipal, bool) {
	a, ok := c.Get(PrincipalKey).(model.AdminPrincipal)
	return a, ok
}

// principalKey names the caller for rate limiting: "user:<id>",
// "admin:<canteen>" or "anon".
func principalKey(c echo.Context) string {
	switch p := c.Get(PrincipalKey).(type) {
	case model.UserPrincipal:
		return "user:" + itoa(p.UserID)
	case model.AdminPrincipal:
		return "admin:" + itoa(p.CanteenID)
	}
	return "anon"
}
