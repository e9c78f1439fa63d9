package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/service"
	"github.com/iliyamo/canteen-order-service/internal/utils"
)

type OperatorLogin interface {
	Login(ctx context.Context, username, password string) (utils.OperatorToken, model.Canteen, error)
}

// AuthHandler serves the canteen operator login.
type AuthHandler struct {
	Auth   OperatorLogin
	Logger *zap.Logger
}

func NewAuthHandler(a OperatorLogin, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{Auth: a, Logger: logger}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type canteenPart struct {
	CanteenID   int32  `json:"canteen_id"`
	CanteenName string `json:"canteen_name"`
}

// Login handles POST /canteen/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "username and password are required")
	}

	tok, canteen, err := h.Auth.Login(c.Request().Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrBadCredential) {
		return fail(c, http.StatusUnauthorized, "invalid username or password")
	}
	if err != nil {
		return internalError(c, h.Logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":     "ok",
		"token":      tok.Token,
		"expires_at": tok.Exp,
		"data":       canteenPart{CanteenID: canteen.ID, CanteenName: canteen.Name},
	})
}
