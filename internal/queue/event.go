// Package queue carries order lifecycle events over RabbitMQ.  The
// coordinator publishes one event per committed transition and a
// background consumer appends them to a rotating audit log.
package queue

// LifecycleQueue is the durable queue every lifecycle event goes to.
const LifecycleQueue = "order.lifecycle"

// Event types.
const (
	EventHoldPlaced     = "hold.placed"
	EventHoldReleased   = "hold.released"
	EventHoldExpired    = "hold.expired"
	EventOrderConfirmed = "order.confirmed"
	EventOrderDelivered = "order.delivered"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is published after a hold or order transition commits.  It
// contains enough to audit the transition without querying the database.
// HoldID is set for hold events and OrderID once an order exists.
type OrderEvent struct {
	Type       string `json:"type"`
	HoldID     int32  `json:"hold_id,omitempty"`
	OrderID    int32  `json:"order_id,omitempty"`
	UserID     int32  `json:"user_id"`
	CanteenID  int32  `json:"canteen_id"`
	TotalPrice int32  `json:"total_price"`
	DeliverAt  string `json:"deliver_at"`
	OccurredAt string `json:"occurred_at"`
}
