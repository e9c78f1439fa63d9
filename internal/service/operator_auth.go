package service

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/repository"
	"github.com/iliyamo/canteen-order-service/internal/utils"
)

type CanteenStore interface {
	GetByUsername(ctx context.Context, username string) (model.Canteen, error)
}

// OperatorAuth checks canteen operator credentials and issues operator
// tokens.
type OperatorAuth struct {
	canteens CanteenStore
	cfg      utils.OperatorTokenConfig
	clock    clockwork.Clock
}

func NewOperatorAuth(canteens CanteenStore, cfg utils.OperatorTokenConfig, clk clockwork.Clock) *OperatorAuth {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &OperatorAuth{canteens: canteens, cfg: cfg, clock: clk}
}

// Login returns a token for the canteen operated by username.  An unknown
// username and a wrong password both yield ErrBadCredential.
func (a *OperatorAuth) Login(ctx context.Context, username, password string) (utils.OperatorToken, model.Canteen, error) {
	c, err := a.canteens.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.OperatorToken{}, model.Canteen{}, ErrBadCredential
	}
	if err != nil {
		return utils.OperatorToken{}, model.Canteen{}, err
	}
	if !utils.VerifyPassword(c.OperatorPassword, password) {
		return utils.OperatorToken{}, model.Canteen{}, ErrBadCredential
	}
	tok, err := utils.NewOperatorToken(a.cfg, c.ID, a.clock.Now())
	if err != nil {
		return utils.OperatorToken{}, model.Canteen{}, err
	}
	return tok, c, nil
}
