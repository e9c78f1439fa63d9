package service

import (
	"context"
	"errors"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/queue"
	"github.com/iliyamo/canteen-order-service/internal/repository"
)

var bandOrder = []string{string(model.BandEleven), string(model.BandNoon), model.InstantLabel}

// ListByCanteen sums item quantities over the canteen's active orders,
// grouped by pickup window.  Windows with no orders are omitted.
func (l *Lifecycle) ListByCanteen(ctx context.Context, canteenID int32) ([]model.BandSummary, error) {
	rows, err := l.orders.CountsByCanteen(ctx, canteenID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]model.ItemCount, len(bandOrder))
	for _, r := range rows {
		label := model.InstantLabel
		if r.TimeBand != nil && r.TimeBand.Valid() {
			label = string(*r.TimeBand)
		}
		grouped[label] = append(grouped[label], r.ItemCount)
	}
	out := make([]model.BandSummary, 0, len(grouped))
	for _, label := range bandOrder {
		if items, ok := grouped[label]; ok {
			out = append(out, model.BandSummary{DeliverAt: label, Items: items})
		}
	}
	return out, nil
}

// GetOrder returns an active order of the canteen.  Orders of other
// canteens read as not found.
func (l *Lifecycle) GetOrder(ctx context.Context, canteenID, orderID int32) (model.OrderDetail, error) {
	o, err := l.orders.GetActive(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.OrderDetail{}, ErrNotFound
	}
	if err != nil {
		return model.OrderDetail{}, err
	}
	if o.CanteenID != canteenID {
		return model.OrderDetail{}, ErrNotFound
	}
	return orderDetail(ctx, l.orders, o)
}

// Transition archives an active order as delivered or cancelled.
func (l *Lifecycle) Transition(ctx context.Context, canteenID, orderID int32, action string) error {
	now := l.clock.Now()
	var order model.ActiveOrder
	err := l.tx.WithTx(ctx, func(txCtx context.Context) error {
		o, err := l.orders.GetActiveForUpdate(txCtx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if action != model.ActionDelivered && action != model.ActionCancelled {
			return ErrInvalidAction
		}
		if o.CanteenID != canteenID {
			return ErrForbidden
		}
		order = o

		items, err := l.orders.ActiveItems(txCtx, o.ID)
		if err != nil {
			return err
		}
		if err := l.orders.CreatePast(txCtx, model.PastOrder{
			ID:          o.ID,
			UserID:      o.UserID,
			CanteenID:   o.CanteenID,
			TotalPrice:  o.TotalPrice,
			TimeBand:    o.TimeBand,
			Delivered:   action == model.ActionDelivered,
			OrderedAt:   o.OrderedAt,
			FinalizedAt: now,
		}); err != nil {
			return err
		}
		if err := l.orders.CreatePastItems(txCtx, items); err != nil {
			return err
		}
		if err := l.orders.DeleteActive(txCtx, o.ID); err != nil {
			return err
		}

		if action == model.ActionCancelled && l.restoreOnCancel {
			qty := make(map[int32]int32, len(items))
			for _, it := range items {
				qty[it.ItemID] += it.Quantity
			}
			return l.restore(txCtx, qty)
		}
		return nil
	})
	if err != nil {
		return err
	}

	typ := queue.EventOrderDelivered
	if action == model.ActionCancelled {
		typ = queue.EventOrderCancelled
	}
	l.publish(ctx, queue.OrderEvent{
		Type:       typ,
		OrderID:    order.ID,
		UserID:     order.UserID,
		CanteenID:  order.CanteenID,
		TotalPrice: order.TotalPrice,
		DeliverAt:  model.BandLabel(order.TimeBand),
	})
	return nil
}

// ListPastOrders returns the user's archived orders, newest first.
func (l *Lifecycle) ListPastOrders(ctx context.Context, userID int32) ([]model.PastOrderDetail, error) {
	return l.orders.ListPastByUser(ctx, userID)
}

func orderDetail(ctx context.Context, orders OrderStore, o model.ActiveOrder) (model.OrderDetail, error) {
	lines, err := orders.ActiveItemLines(ctx, o.ID)
	if err != nil {
		return model.OrderDetail{}, err
	}
	if lines == nil {
		lines = []model.ItemLine{}
	}
	return model.OrderDetail{
		OrderID:    o.ID,
		UserID:     o.UserID,
		CanteenID:  o.CanteenID,
		TotalPrice: o.TotalPrice,
		DeliverAt:  model.BandLabel(o.TimeBand),
		OrderedAt:  o.OrderedAt,
		Items:      lines,
	}, nil
}
