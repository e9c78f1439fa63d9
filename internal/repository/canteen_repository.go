package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/jmoiron/sqlx"
)

// CanteenRepo reads canteens for operator login.
type CanteenRepo struct{ base }

func NewCanteenRepo(db *sqlx.DB) *CanteenRepo { return &CanteenRepo{base{db: db}} }

// GetByUsername fetches the canteen whose operator account is username.
func (r *CanteenRepo) GetByUsername(ctx context.Context, username string) (model.Canteen, error) {
	var c model.Canteen
	err := r.get(ctx, &c,
		`SELECT id, name, location, operator_username, operator_password FROM canteens WHERE operator_username = ?`,
		strings.TrimSpace(username))
	return c, err
}
