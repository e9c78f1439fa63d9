package handler // handler translates HTTP requests into lifecycle calls

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-order-service/internal/service"
)

// fail writes the error envelope used by every endpoint.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"status": "error", "error": msg})
}

// holdError maps errors of the hold, confirm and release endpoints.  Every
// domain failure there is a state conflict.
func holdError(c echo.Context, logger *zap.Logger, err error) error {
	var na *service.NotAvailableError
	var ve *service.ValidationError
	switch {
	case errors.As(err, &na):
		return c.JSON(http.StatusConflict, echo.Map{
			"status":  "error",
			"error":   na.Reason,
			"item_id": na.ItemID,
			"name":    na.Name,
		})
	case errors.As(err, &ve):
		return fail(c, http.StatusConflict, ve.Reason)
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusConflict, "not found")
	}
	return internalError(c, logger, err)
}

// transitionError maps errors of PUT /orders/:id/:action.
func transitionError(c echo.Context, logger *zap.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidAction):
		return fail(c, http.StatusBadRequest, "action must be delivered or cancelled")
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusConflict, "Order not found")
	case errors.Is(err, service.ErrForbidden):
		return fail(c, http.StatusForbidden, "order belongs to another canteen")
	}
	return internalError(c, logger, err)
}

func internalError(c echo.Context, logger *zap.Logger, err error) error {
	logger.Error("request failed",
		zap.String("path", c.Path()),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Error(err),
	)
	return fail(c, http.StatusInternalServerError, "internal error")
}

// ErrorHandler renders framework errors (unknown route, wrong method,
// panics recovered upstream) in the same envelope as handler errors.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		} else {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = fail(c, status, msg)
	}
}
