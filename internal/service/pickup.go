package service

import (
	"context"
	"errors"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/repository"
	"github.com/iliyamo/canteen-order-service/internal/utils"
)

// TokenError wraps a pickup token that failed verification.  Its message
// is the verifier's.
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string { return e.Err.Error() }
func (e *TokenError) Unwrap() error { return e.Err }

// Pickup issues pickup QR codes to order owners and verifies them for
// operators.  Scanning does not change the order; delivery is a separate
// transition.
type Pickup struct {
	orders OrderStore
	signer *utils.QRSigner
}

func NewPickup(orders OrderStore, signer *utils.QRSigner) *Pickup {
	return &Pickup{orders: orders, signer: signer}
}

// IssueQR renders a signed pickup code for one of userID's active orders.
func (p *Pickup) IssueQR(ctx context.Context, userID, orderID int32) ([]byte, error) {
	o, err := p.orders.GetActive(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	return utils.RenderQRPNG(p.signer.Generate(o.ID, o.UserID), utils.QRCodeSize)
}

// Scan verifies token and returns the order it names if it is still
// active and belongs to canteenID.
func (p *Pickup) Scan(ctx context.Context, canteenID int32, token string) (model.OrderDetail, error) {
	orderID, userID, err := p.signer.Verify(token)
	if err != nil {
		return model.OrderDetail{}, &TokenError{Err: err}
	}

	o, err := p.orders.GetActive(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.OrderDetail{}, ErrNotFound
	}
	if err != nil {
		return model.OrderDetail{}, err
	}
	if o.UserID != userID {
		return model.OrderDetail{}, ErrNotFound
	}
	if o.CanteenID != canteenID {
		return model.OrderDetail{}, ErrForbidden
	}
	return orderDetail(ctx, p.orders, o)
}
