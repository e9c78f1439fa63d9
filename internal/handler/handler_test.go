package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-order-service/internal/middleware"
	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/service"
	"github.com/iliyamo/canteen-order-service/internal/utils"
)

type stubLifecycle struct {
	hold     model.Hold
	orderID  int32
	bands    []model.BandSummary
	detail   model.OrderDetail
	past     []model.PastOrderDetail
	err      error
	gotBand  *model.TimeBand
	gotItems []int32
	gotAct   string
}

func (s *stubLifecycle) PlaceHold(_ context.Context, _ int32, itemIDs []int32, band *model.TimeBand) (model.Hold, error) {
	s.gotItems, s.gotBand = itemIDs, band
	return s.hold, s.err
}
func (s *stubLifecycle) ReleaseHold(context.Context, int32, int32) error { return s.err }
func (s *stubLifecycle) ConfirmHold(context.Context, int32, int32) (int32, error) {
	return s.orderID, s.err
}
func (s *stubLifecycle) ListByCanteen(context.Context, int32) ([]model.BandSummary, error) {
	return s.bands, s.err
}
func (s *stubLifecycle) GetOrder(context.Context, int32, int32) (model.OrderDetail, error) {
	return s.detail, s.err
}
func (s *stubLifecycle) Transition(_ context.Context, _, _ int32, action string) error {
	s.gotAct = action
	return s.err
}
func (s *stubLifecycle) ListPastOrders(context.Context, int32) ([]model.PastOrderDetail, error) {
	return s.past, s.err
}

type stubPickup struct {
	png    []byte
	detail model.OrderDetail
	err    error
}

func (s *stubPickup) IssueQR(context.Context, int32, int32) ([]byte, error) { return s.png, s.err }
func (s *stubPickup) Scan(context.Context, int32, string) (model.OrderDetail, error) {
	return s.detail, s.err
}

type stubLogin struct {
	tok     utils.OperatorToken
	canteen model.Canteen
	err     error
}

func (s *stubLogin) Login(context.Context, string, string) (utils.OperatorToken, model.Canteen, error) {
	return s.tok, s.canteen, s.err
}

// serve runs one request through a bare echo instance with p installed
// as the principal.
func serve(t *testing.T, method, route, path, body string, p model.Principal, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(nil)
	e.Add(method, route, h, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p != nil {
				c.Set(middleware.PrincipalKey, p)
			}
			return next(c)
		}
	})
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

var (
	student  = model.UserPrincipal{UserID: 7, ExternalID: "ext-7"}
	operator = model.AdminPrincipal{CanteenID: 1}
)

func TestPlaceHold(t *testing.T) {
	t.Parallel()

	expires := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	tests := []struct {
		name           string
		body           string
		principal      model.Principal
		err            error
		expectedStatus int
		expectedSubstr string
		expectedBand   *model.TimeBand
	}{
		{
			name:           "band",
			body:           `{"deliver_at":"11:00am - 12:00pm","item_ids":[1,1]}`,
			principal:      student,
			expectedStatus: http.StatusOK,
			expectedSubstr: `"hold_id":42`,
			expectedBand:   ptrBand(model.BandEleven),
		},
		{
			name:           "null band",
			body:           `{"deliver_at":null,"item_ids":[1]}`,
			principal:      student,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown band",
			body:           `{"deliver_at":"dinner","item_ids":[1]}`,
			principal:      student,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: "invalid time band",
		},
		{
			name:           "empty cart",
			body:           `{"item_ids":[]}`,
			principal:      student,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body",
			body:           `{"item_ids":`,
			principal:      student,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "multiple canteens",
			body:           `{"item_ids":[1,2]}`,
			principal:      student,
			err:            service.ErrMultipleCanteens,
			expectedStatus: http.StatusConflict,
			expectedSubstr: "multiple canteens",
		},
		{
			name:           "out of stock",
			body:           `{"item_ids":[1]}`,
			principal:      student,
			err:            &service.NotAvailableError{ItemID: 1, Name: "Dosa", Reason: service.ReasonOutOfStock},
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"item_id":1`,
		},
		{
			name:           "total too large",
			body:           `{"item_ids":[1]}`,
			principal:      student,
			err:            service.ErrTotalTooLarge,
			expectedStatus: http.StatusConflict,
			expectedSubstr: "total price too large",
		},
		{
			name:           "unknown item",
			body:           `{"item_ids":[99]}`,
			principal:      student,
			err:            service.ErrNotFound,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "database down",
			body:           `{"item_ids":[1]}`,
			principal:      student,
			err:            errors.New("connection refused"),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "no principal",
			body:           `{"item_ids":[1]}`,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubLifecycle{hold: model.Hold{ID: 42, ExpiresAt: expires}, err: tt.err}
			h := NewOrderHandler(svc, &stubPickup{}, nil)

			rec := serve(t, http.MethodPost, "/orders/hold", "/orders/hold", tt.body, tt.principal, h.PlaceHold)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
			if tt.expectedBand != nil && (svc.gotBand == nil || *svc.gotBand != *tt.expectedBand) {
				t.Fatalf("band = %v, want %v", svc.gotBand, *tt.expectedBand)
			}
			resp := decode(t, rec)
			want := "ok"
			if rec.Code != http.StatusOK {
				want = "error"
			}
			if resp["status"] != want {
				t.Fatalf("status field = %v, want %s", resp["status"], want)
			}
		})
	}
}

func TestPlaceHold_PassesDuplicates(t *testing.T) {
	svc := &stubLifecycle{hold: model.Hold{ID: 1}}
	h := NewOrderHandler(svc, &stubPickup{}, nil)

	rec := serve(t, http.MethodPost, "/orders/hold", "/orders/hold", `{"item_ids":[3,3,4]}`, student, h.PlaceHold)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// duplicates are passed through; the coordinator turns them into quantities
	if len(svc.gotItems) != 3 || svc.gotBand != nil {
		t.Fatalf("items = %v band = %v", svc.gotItems, svc.gotBand)
	}
}

func TestConfirmAndRelease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		route          string
		path           string
		err            error
		expectedStatus int
		expectedSubstr string
	}{
		{"confirm", http.MethodPost, "/orders/hold/:id/confirm", "/orders/hold/5/confirm", nil, http.StatusOK, `"order_id":9`},
		{"confirm expired", http.MethodPost, "/orders/hold/:id/confirm", "/orders/hold/5/confirm", service.ErrHoldExpired, http.StatusConflict, "expired; released"},
		{"confirm not owner", http.MethodPost, "/orders/hold/:id/confirm", "/orders/hold/5/confirm", service.ErrNotOwner, http.StatusConflict, "not owner"},
		{"confirm missing", http.MethodPost, "/orders/hold/:id/confirm", "/orders/hold/5/confirm", service.ErrNotFound, http.StatusConflict, ""},
		{"confirm bad id", http.MethodPost, "/orders/hold/:id/confirm", "/orders/hold/x/confirm", nil, http.StatusBadRequest, ""},
		{"release", http.MethodDelete, "/orders/hold/:id", "/orders/hold/5", nil, http.StatusOK, `"status":"ok"`},
		{"release missing", http.MethodDelete, "/orders/hold/:id", "/orders/hold/5", service.ErrNotFound, http.StatusConflict, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewOrderHandler(&stubLifecycle{orderID: 9, err: tt.err}, &stubPickup{}, nil)
			handler := h.ConfirmHold
			if tt.method == http.MethodDelete {
				handler = h.ReleaseHold
			}

			rec := serve(t, tt.method, tt.route, tt.path, "", student, handler)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestGetOrder_NotFoundKeeps200(t *testing.T) {
	h := NewOrderHandler(&stubLifecycle{err: service.ErrNotFound}, &stubPickup{}, nil)

	rec := serve(t, http.MethodGet, "/orders/:id", "/orders/3", "", operator, h.GetOrder)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["status"] != "error" || resp["error"] != "Order not found" {
		t.Fatalf("body = %v", resp)
	}
	if v, ok := resp["data"]; !ok || v != nil {
		t.Fatalf("data = %v, want explicit null", v)
	}
}

func TestGetOrder_Found(t *testing.T) {
	detail := model.OrderDetail{OrderID: 3, CanteenID: 1, TotalPrice: 240, DeliverAt: model.InstantLabel,
		Items: []model.ItemLine{{ItemID: 1, Name: "Dosa", Quantity: 2, UnitPrice: 120}}}
	h := NewOrderHandler(&stubLifecycle{detail: detail}, &stubPickup{}, nil)

	rec := serve(t, http.MethodGet, "/orders/:id", "/orders/3", "", operator, h.GetOrder)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_price":240`) {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestListOrders(t *testing.T) {
	bands := []model.BandSummary{{DeliverAt: string(model.BandNoon), Items: []model.ItemCount{{ItemID: 1, Name: "Dosa", Quantity: 4}}}}
	h := NewOrderHandler(&stubLifecycle{bands: bands}, &stubPickup{}, nil)

	rec := serve(t, http.MethodGet, "/orders", "/orders", "", operator, h.ListOrders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"deliver_at":"12:00pm - 01:00pm"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		err            error
		expectedStatus int
	}{
		{"delivered", "/orders/3/delivered", nil, http.StatusOK},
		{"cancelled", "/orders/3/cancelled", nil, http.StatusOK},
		{"unknown action", "/orders/3/eaten", service.ErrInvalidAction, http.StatusBadRequest},
		{"not found", "/orders/3/delivered", service.ErrNotFound, http.StatusConflict},
		{"foreign canteen", "/orders/3/delivered", service.ErrForbidden, http.StatusForbidden},
		{"bad id", "/orders/0/delivered", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubLifecycle{err: tt.err}
			h := NewOrderHandler(svc, &stubPickup{}, nil)

			rec := serve(t, http.MethodPut, "/orders/:id/:action", tt.path, "", operator, h.Transition)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if rec.Code == http.StatusOK && svc.gotAct != tt.path[len("/orders/3/"):] {
				t.Fatalf("action = %q", svc.gotAct)
			}
		})
	}
}

func TestQR(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"ok", nil, http.StatusOK},
		{"missing", service.ErrNotFound, http.StatusNotFound},
		{"not owner", service.ErrForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewOrderHandler(&stubLifecycle{}, &stubPickup{png: []byte("\x89PNG"), err: tt.err}, nil)

			rec := serve(t, http.MethodGet, "/orders/:id/qr", "/orders/3/qr", "", student, h.QR)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.err == nil && rec.Header().Get(echo.HeaderContentType) != "image/png" {
				t.Fatalf("content type = %q", rec.Header().Get(echo.HeaderContentType))
			}
		})
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
		expectedSubstr string
	}{
		{"ok", `{"token":"abc"}`, nil, http.StatusOK, `"order_id":3`},
		{"bad signature", `{"token":"abc"}`, &service.TokenError{Err: utils.ErrTokenSignature}, http.StatusBadRequest, "Invalid token signature"},
		{"expired", `{"token":"abc"}`, &service.TokenError{Err: utils.ErrTokenExpired}, http.StatusBadRequest, "Token has expired"},
		{"completed", `{"token":"abc"}`, service.ErrNotFound, http.StatusBadRequest, "Order not found or already completed"},
		{"foreign canteen", `{"token":"abc"}`, service.ErrForbidden, http.StatusForbidden, "QR is valid but does not belong to this shop's order"},
		{"no token", `{}`, nil, http.StatusBadRequest, "token is required"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewOrderHandler(&stubLifecycle{}, &stubPickup{detail: model.OrderDetail{OrderID: 3}, err: tt.err}, nil)

			rec := serve(t, http.MethodPost, "/orders/scan", "/orders/scan", tt.body, operator, h.Scan)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestPastOrders_EmptyIsList(t *testing.T) {
	h := NewOrderHandler(&stubLifecycle{}, &stubPickup{}, nil)

	rec := serve(t, http.MethodGet, "/users/get_past_orders", "/users/get_past_orders", "", student, h.PastOrders)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
		expectedSubstr string
	}{
		{"ok", `{"username":"north","password":"pw"}`, nil, http.StatusOK, `"canteen_name":"North Block"`},
		{"bad password", `{"username":"north","password":"nope"}`, service.ErrBadCredential, http.StatusUnauthorized, ""},
		{"missing password", `{"username":"north"}`, nil, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewAuthHandler(&stubLogin{
				tok:     utils.OperatorToken{Token: "jwt", Exp: time.Now().Add(time.Hour)},
				canteen: model.Canteen{ID: 1, Name: "North Block"},
				err:     tt.err,
			}, nil)

			rec := serve(t, http.MethodPost, "/canteen/login", "/canteen/login", tt.body, nil, h.Login)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestErrorHandler_Envelope(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(nil)
	e.GET("/health", Health)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode(t, rec); resp["status"] != "error" {
		t.Fatalf("body = %v", resp)
	}
}

func ptrBand(b model.TimeBand) *model.TimeBand { return &b }
