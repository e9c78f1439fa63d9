package repository

import (
	"context"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/jmoiron/sqlx"
)

const menuItemColumns = `id, canteen_id, name, is_veg, unit_price, stock, is_available`

// MenuItemRepo owns the menu_items stock column.
type MenuItemRepo struct{ base }

func NewMenuItemRepo(db *sqlx.DB) *MenuItemRepo { return &MenuItemRepo{base{db: db}} }

// LockByIDs selects the given items FOR UPDATE.  Rows are locked in
// ascending id order so two holds sharing items cannot deadlock.  Missing
// ids are simply absent from the result.
func (r *MenuItemRepo) LockByIDs(ctx context.Context, ids []int32) ([]model.MenuItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []model.MenuItem
	err := r.selectIn(ctx, &items,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE id IN (?) ORDER BY id ASC FOR UPDATE`, ids)
	return items, err
}

// UpdateStock writes the stock and availability of one item.  Callers
// must hold the row lock.
func (r *MenuItemRepo) UpdateStock(ctx context.Context, id, stock int32, available bool) error {
	_, err := r.exec(ctx, `UPDATE menu_items SET stock = ?, is_available = ? WHERE id = ?`, stock, available, id)
	return err
}
