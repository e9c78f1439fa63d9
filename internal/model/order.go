package model

import "time"

// ActiveOrder is a confirmed hold awaiting pickup.
type ActiveOrder struct {
	ID         int32     `db:"id"`
	UserID     int32     `db:"user_id"`
	CanteenID  int32     `db:"canteen_id"`
	TotalPrice int32     `db:"total_price"`
	TimeBand   *TimeBand `db:"time_band"`
	OrderedAt  time.Time `db:"ordered_at"`
}

// OrderItem is a line of an active or past order.  The unit price is the
// one frozen when the hold was placed.
type OrderItem struct {
	OrderID         int32 `db:"order_id"`
	ItemID          int32 `db:"item_id"`
	Quantity        int32 `db:"quantity"`
	UnitPriceFrozen int32 `db:"unit_price_frozen"`
}

// PastOrder is the terminal archive record of an order.  Delivered is
// true for a fulfilled order and false for a cancelled one.
type PastOrder struct {
	ID          int32     `db:"id"`
	UserID      int32     `db:"user_id"`
	CanteenID   int32     `db:"canteen_id"`
	TotalPrice  int32     `db:"total_price"`
	TimeBand    *TimeBand `db:"time_band"`
	Delivered   bool      `db:"order_status"`
	OrderedAt   time.Time `db:"ordered_at"`
	FinalizedAt time.Time `db:"finalized_at"`
}

// Transition actions accepted for an active order.
const (
	ActionDelivered = "delivered"
	ActionCancelled = "cancelled"
)
