package repository

import (
	"context"
	"time"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/jmoiron/sqlx"
)

// HoldRepo provides data access to the holds and hold_items tables.  A
// hold and its items are always written and deleted together inside one
// transaction.
type HoldRepo struct{ base }

func NewHoldRepo(db *sqlx.DB) *HoldRepo { return &HoldRepo{base{db: db}} }

// Create inserts the hold row and returns its id.
func (r *HoldRepo) Create(ctx context.Context, h model.Hold) (int32, error) {
	return r.insertID(ctx,
		`INSERT INTO holds (user_id, canteen_id, total_price, time_band, expires_at) VALUES (?, ?, ?, ?, ?)`,
		h.UserID, h.CanteenID, h.TotalPrice, h.TimeBand, h.ExpiresAt.UTC())
}

// CreateItems inserts one row per distinct held item.
func (r *HoldRepo) CreateItems(ctx context.Context, items []model.HoldItem) error {
	for _, it := range items {
		if _, err := r.exec(ctx,
			`INSERT INTO hold_items (hold_id, item_id, quantity, unit_price_frozen) VALUES (?, ?, ?, ?)`,
			it.HoldID, it.ItemID, it.Quantity, it.UnitPriceFrozen); err != nil {
			return err
		}
	}
	return nil
}

// GetForUpdate reads and locks the hold row.  It returns ErrNotFound when
// the hold is gone, which is also what a concurrent release leaves behind.
func (r *HoldRepo) GetForUpdate(ctx context.Context, id int32) (model.Hold, error) {
	var h model.Hold
	err := r.get(ctx, &h,
		`SELECT id, user_id, canteen_id, total_price, time_band, expires_at FROM holds WHERE id = ? FOR UPDATE`, id)
	return h, err
}

// Items lists the hold's items ordered by item id.
func (r *HoldRepo) Items(ctx context.Context, holdID int32) ([]model.HoldItem, error) {
	var items []model.HoldItem
	err := r.selectAll(ctx, &items,
		`SELECT hold_id, item_id, quantity, unit_price_frozen FROM hold_items WHERE hold_id = ? ORDER BY item_id ASC`, holdID)
	return items, err
}

// Delete removes the hold's items and then the hold.
func (r *HoldRepo) Delete(ctx context.Context, id int32) error {
	if _, err := r.exec(ctx, `DELETE FROM hold_items WHERE hold_id = ?`, id); err != nil {
		return err
	}
	_, err := r.exec(ctx, `DELETE FROM holds WHERE id = ?`, id)
	return err
}

// ExpiredIDs lists holds whose expiry is strictly before now.
func (r *HoldRepo) ExpiredIDs(ctx context.Context, now time.Time) ([]int32, error) {
	var ids []int32
	err := r.selectAll(ctx, &ids, `SELECT id FROM holds WHERE expires_at < ? ORDER BY id ASC`, now.UTC())
	return ids, err
}
