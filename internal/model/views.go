package model

import "time"

// ItemLine is an order line joined with its menu item name.
type ItemLine struct {
	ItemID    int32  `db:"item_id" json:"item_id"`
	Name      string `db:"name" json:"name"`
	Quantity  int32  `db:"quantity" json:"quantity"`
	UnitPrice int32  `db:"unit_price" json:"unit_price"`
}

// OrderDetail is what operators see for an active order.
type OrderDetail struct {
	OrderID    int32      `json:"order_id"`
	UserID     int32      `json:"user_id"`
	CanteenID  int32      `json:"canteen_id"`
	TotalPrice int32      `json:"total_price"`
	DeliverAt  string     `json:"deliver_at"`
	OrderedAt  time.Time  `json:"ordered_at"`
	Items      []ItemLine `json:"items"`
}

// PastOrderDetail is what a user sees in their order history.
type PastOrderDetail struct {
	OrderID     int32      `json:"order_id"`
	CanteenID   int32      `json:"canteen_id"`
	CanteenName string     `json:"canteen_name"`
	TotalPrice  int32      `json:"total_price"`
	DeliverAt   string     `json:"deliver_at"`
	OrderStatus bool       `json:"order_status"`
	OrderedAt   time.Time  `json:"ordered_at"`
	FinalizedAt time.Time  `json:"finalized_at"`
	Items       []ItemLine `json:"items"`
}

// ItemCount is the total quantity of one item across active orders.
type ItemCount struct {
	ItemID   int32  `db:"item_id" json:"item_id"`
	Name     string `db:"name" json:"name"`
	Quantity int64  `db:"quantity" json:"quantity"`
}

// BandSummary groups item counts of a canteen's active orders by pickup
// window.
type BandSummary struct {
	DeliverAt string      `json:"deliver_at"`
	Items     []ItemCount `json:"items"`
}

// BandItemCount is one (band, item) aggregate row before grouping.
type BandItemCount struct {
	TimeBand *TimeBand `db:"time_band"`
	ItemCount
}
