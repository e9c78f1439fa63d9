package repository

import (
	"context"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/jmoiron/sqlx"
)

const activeOrderColumns = `id, user_id, canteen_id, total_price, time_band, ordered_at`

// OrderRepo provides data access to active_orders, past_orders and their
// item tables.  An order id lives in exactly one of the two order tables;
// archiving copies the id across.
type OrderRepo struct{ base }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{base{db: db}} }

func (r *OrderRepo) CreateActive(ctx context.Context, o model.ActiveOrder) (int32, error) {
	return r.insertID(ctx,
		`INSERT INTO active_orders (user_id, canteen_id, total_price, time_band, ordered_at) VALUES (?, ?, ?, ?, ?)`,
		o.UserID, o.CanteenID, o.TotalPrice, o.TimeBand, o.OrderedAt.UTC())
}

func (r *OrderRepo) CreateActiveItems(ctx context.Context, items []model.OrderItem) error {
	return r.insertItems(ctx, "active_order_items", items)
}

// GetActive reads an active order without locking.
func (r *OrderRepo) GetActive(ctx context.Context, id int32) (model.ActiveOrder, error) {
	var o model.ActiveOrder
	err := r.get(ctx, &o, `SELECT `+activeOrderColumns+` FROM active_orders WHERE id = ?`, id)
	return o, err
}

// GetActiveForUpdate reads and locks an active order.
func (r *OrderRepo) GetActiveForUpdate(ctx context.Context, id int32) (model.ActiveOrder, error) {
	var o model.ActiveOrder
	err := r.get(ctx, &o, `SELECT `+activeOrderColumns+` FROM active_orders WHERE id = ? FOR UPDATE`, id)
	return o, err
}

func (r *OrderRepo) ActiveItems(ctx context.Context, orderID int32) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.selectAll(ctx, &items,
		`SELECT order_id, item_id, quantity, unit_price_frozen FROM active_order_items WHERE order_id = ? ORDER BY item_id ASC`, orderID)
	return items, err
}

// ActiveItemLines lists the order's lines with their menu item names.
func (r *OrderRepo) ActiveItemLines(ctx context.Context, orderID int32) ([]model.ItemLine, error) {
	lines := []model.ItemLine{}
	err := r.selectAll(ctx, &lines,
		`SELECT i.item_id, m.name, i.quantity, i.unit_price_frozen AS unit_price
		   FROM active_order_items i JOIN menu_items m ON m.id = i.item_id
		  WHERE i.order_id = ? ORDER BY i.item_id ASC`, orderID)
	return lines, err
}

// DeleteActive removes the order's items and then the order.
func (r *OrderRepo) DeleteActive(ctx context.Context, id int32) error {
	if _, err := r.exec(ctx, `DELETE FROM active_order_items WHERE order_id = ?`, id); err != nil {
		return err
	}
	_, err := r.exec(ctx, `DELETE FROM active_orders WHERE id = ?`, id)
	return err
}

func (r *OrderRepo) CreatePast(ctx context.Context, p model.PastOrder) error {
	_, err := r.exec(ctx,
		`INSERT INTO past_orders (id, user_id, canteen_id, total_price, time_band, order_status, ordered_at, finalized_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.CanteenID, p.TotalPrice, p.TimeBand, p.Delivered, p.OrderedAt.UTC(), p.FinalizedAt.UTC())
	return err
}

func (r *OrderRepo) CreatePastItems(ctx context.Context, items []model.OrderItem) error {
	return r.insertItems(ctx, "past_order_items", items)
}

func (r *OrderRepo) insertItems(ctx context.Context, table string, items []model.OrderItem) error {
	query := `INSERT INTO ` + table + ` (order_id, item_id, quantity, unit_price_frozen) VALUES (?, ?, ?, ?)`
	for _, it := range items {
		if _, err := r.exec(ctx, query, it.OrderID, it.ItemID, it.Quantity, it.UnitPriceFrozen); err != nil {
			return err
		}
	}
	return nil
}

// CountsByCanteen sums item quantities over the canteen's active orders
// per (time band, item).
func (r *OrderRepo) CountsByCanteen(ctx context.Context, canteenID int32) ([]model.BandItemCount, error) {
	var rows []model.BandItemCount
	err := r.selectAll(ctx, &rows,
		`SELECT o.time_band, i.item_id, m.name, SUM(i.quantity) AS quantity
		   FROM active_orders o
		   JOIN active_order_items i ON i.order_id = o.id
		   JOIN menu_items m ON m.id = i.item_id
		  WHERE o.canteen_id = ?
		  GROUP BY o.time_band, i.item_id, m.name
		  ORDER BY o.time_band, i.item_id`, canteenID)
	return rows, err
}

type pastOrderRow struct {
	model.PastOrder
	CanteenName string `db:"canteen_name"`
}

type pastItemLine struct {
	OrderID int32 `db:"order_id"`
	model.ItemLine
}

// ListPastByUser returns the user's archived orders, newest first, with
// canteen names and item lines filled in.
func (r *OrderRepo) ListPastByUser(ctx context.Context, userID int32) ([]model.PastOrderDetail, error) {
	var rows []pastOrderRow
	if err := r.selectAll(ctx, &rows,
		`SELECT p.id, p.user_id, p.canteen_id, p.total_price, p.time_band, p.order_status,
		        p.ordered_at, p.finalized_at, c.name AS canteen_name
		   FROM past_orders p JOIN canteens c ON c.id = p.canteen_id
		  WHERE p.user_id = ?
		  ORDER BY p.finalized_at DESC, p.id DESC`, userID); err != nil {
		return nil, err
	}
	out := make([]model.PastOrderDetail, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]int32, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var lines []pastItemLine
	if err := r.selectIn(ctx, &lines,
		`SELECT i.order_id, i.item_id, m.name, i.quantity, i.unit_price_frozen AS unit_price
		   FROM past_order_items i JOIN menu_items m ON m.id = i.item_id
		  WHERE i.order_id IN (?) ORDER BY i.order_id, i.item_id`, ids); err != nil {
		return nil, err
	}
	byOrder := make(map[int32][]model.ItemLine, len(rows))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l.ItemLine)
	}

	for _, row := range rows {
		items := byOrder[row.ID]
		if items == nil {
			items = []model.ItemLine{}
		}
		out = append(out, model.PastOrderDetail{
			OrderID:     row.ID,
			CanteenID:   row.CanteenID,
			CanteenName: row.CanteenName,
			TotalPrice:  row.TotalPrice,
			DeliverAt:   model.BandLabel(row.TimeBand),
			OrderStatus: row.Delivered,
			OrderedAt:   row.OrderedAt,
			FinalizedAt: row.FinalizedAt,
			Items:       items,
		})
	}
	return out, nil
}
