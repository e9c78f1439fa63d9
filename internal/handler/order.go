package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-order-service/internal/middleware"
	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/service"
)

// Lifecycle is the part of the coordinator the HTTP adapter drives.
type Lifecycle interface {
	PlaceHold(ctx context.Context, userID int32, itemIDs []int32, band *model.TimeBand) (model.Hold, error)
	ReleaseHold(ctx context.Context, holdID, userID int32) error
	ConfirmHold(ctx context.Context, holdID, userID int32) (int32, error)
	ListByCanteen(ctx context.Context, canteenID int32) ([]model.BandSummary, error)
	GetOrder(ctx context.Context, canteenID, orderID int32) (model.OrderDetail, error)
	Transition(ctx context.Context, canteenID, orderID int32, action string) error
	ListPastOrders(ctx context.Context, userID int32) ([]model.PastOrderDetail, error)
}

type PickupService interface {
	IssueQR(ctx context.Context, userID, orderID int32) ([]byte, error)
	Scan(ctx context.Context, canteenID int32, token string) (model.OrderDetail, error)
}

// OrderHandler serves the hold and order endpoints.  Principal and role
// middleware run before every method, so a missing principal here means
// the route was registered without them and is answered with 401.
type OrderHandler struct {
	Orders Lifecycle
	Pickup PickupService
	Logger *zap.Logger
}

func NewOrderHandler(orders Lifecycle, pickup PickupService, logger *zap.Logger) *OrderHandler {
	if orders == nil || pickup == nil {
		panic("nil service passed to NewOrderHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{Orders: orders, Pickup: pickup, Logger: logger}
}

type holdReq struct {
	DeliverAt *string `json:"deliver_at"`
	ItemIDs   []int32 `json:"item_ids"`
}

type scanReq struct {
	Token string `json:"token"`
}

// PlaceHold handles POST /orders/hold.  A null or absent deliver_at means
// instant pickup; any other value must be one of the two band strings.
func (h *OrderHandler) PlaceHold(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req holdReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if len(req.ItemIDs) == 0 {
		return fail(c, http.StatusBadRequest, "item_ids is required")
	}
	var band *model.TimeBand
	if req.DeliverAt != nil {
		b := model.TimeBand(*req.DeliverAt)
		if !b.Valid() {
			return fail(c, http.StatusBadRequest, "invalid time band")
		}
		band = &b
	}

	hold, err := h.Orders.PlaceHold(c.Request().Context(), user.UserID, req.ItemIDs, band)
	if err != nil {
		return holdError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":     "ok",
		"hold_id":    hold.ID,
		"expires_at": hold.ExpiresAt,
	})
}

// ConfirmHold handles POST /orders/hold/:id/confirm.
func (h *OrderHandler) ConfirmHold(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	holdID, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid hold id")
	}
	orderID, err := h.Orders.ConfirmHold(c.Request().Context(), holdID, user.UserID)
	if err != nil {
		return holdError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "order_id": orderID})
}

// ReleaseHold handles DELETE /orders/hold/:id.
func (h *OrderHandler) ReleaseHold(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	holdID, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid hold id")
	}
	if err := h.Orders.ReleaseHold(c.Request().Context(), holdID, user.UserID); err != nil {
		return holdError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// ListOrders handles GET /orders: item totals of the operator's active
// orders per pickup window.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	admin, ok := middleware.CurrentAdmin(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	bands, err := h.Orders.ListByCanteen(c.Request().Context(), admin.CanteenID)
	if err != nil {
		return internalError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "data": bands})
}

// GetOrder handles GET /orders/:id.  A missing order is still a 200 with
// status "error" and null data; clients depend on that shape.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	admin, ok := middleware.CurrentAdmin(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	orderID, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid order id")
	}
	detail, err := h.Orders.GetOrder(c.Request().Context(), admin.CanteenID, orderID)
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"status": "error", "error": "Order not found", "data": nil})
	}
	if err != nil {
		return internalError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "data": detail})
}

// Transition handles PUT /orders/:id/:action with action delivered or
// cancelled.
func (h *OrderHandler) Transition(c echo.Context) error {
	admin, ok := middleware.CurrentAdmin(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	orderID, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid order id")
	}
	if err := h.Orders.Transition(c.Request().Context(), admin.CanteenID, orderID, c.Param("action")); err != nil {
		return transitionError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// QR handles GET /orders/:id/qr and answers with a PNG.
func (h *OrderHandler) QR(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	orderID, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid order id")
	}
	png, err := h.Pickup.IssueQR(c.Request().Context(), user.UserID, orderID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusNotFound, "Order not found")
	case errors.Is(err, service.ErrForbidden):
		return fail(c, http.StatusForbidden, "order belongs to another user")
	case err != nil:
		return internalError(c, h.Logger, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}

// Scan handles POST /orders/scan.  It only reads the order; handing it
// over is a separate PUT /orders/:id/delivered.
func (h *OrderHandler) Scan(c echo.Context) error {
	admin, ok := middleware.CurrentAdmin(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" {
		return fail(c, http.StatusBadRequest, "token is required")
	}

	detail, err := h.Pickup.Scan(c.Request().Context(), admin.CanteenID, req.Token)
	var te *service.TokenError
	switch {
	case errors.As(err, &te):
		return fail(c, http.StatusBadRequest, te.Error())
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusBadRequest, "Order not found or already completed")
	case errors.Is(err, service.ErrForbidden):
		return fail(c, http.StatusForbidden, "QR is valid but does not belong to this shop's order")
	case err != nil:
		return internalError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "data": detail})
}

// PastOrders handles GET /users/get_past_orders.
func (h *OrderHandler) PastOrders(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	orders, err := h.Orders.ListPastOrders(c.Request().Context(), user.UserID)
	if err != nil {
		return internalError(c, h.Logger, err)
	}
	if orders == nil {
		orders = []model.PastOrderDetail{}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "data": orders})
}

// pathID parses the :id path parameter as a positive 32-bit id.
func pathID(c echo.Context) (int32, bool) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || n <= 0 {
		return 0, false
	}
	return int32(n), true
}
