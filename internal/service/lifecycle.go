// Package service implements the order lifecycle: holds that reserve
// stock, their confirmation into active orders, release and expiry, and
// the archival of active orders as delivered or cancelled.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/queue"
	"github.com/iliyamo/canteen-order-service/internal/repository"
)

// TxRunner runs fn in a transaction carried by the context it receives.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type MenuItemStore interface {
	LockByIDs(ctx context.Context, ids []int32) ([]model.MenuItem, error)
	UpdateStock(ctx context.Context, id, stock int32, available bool) error
}

type HoldStore interface {
	Create(ctx context.Context, h model.Hold) (int32, error)
	CreateItems(ctx context.Context, items []model.HoldItem) error
	GetForUpdate(ctx context.Context, id int32) (model.Hold, error)
	Items(ctx context.Context, holdID int32) ([]model.HoldItem, error)
	Delete(ctx context.Context, id int32) error
	ExpiredIDs(ctx context.Context, now time.Time) ([]int32, error)
}

type OrderStore interface {
	CreateActive(ctx context.Context, o model.ActiveOrder) (int32, error)
	CreateActiveItems(ctx context.Context, items []model.OrderItem) error
	GetActive(ctx context.Context, id int32) (model.ActiveOrder, error)
	GetActiveForUpdate(ctx context.Context, id int32) (model.ActiveOrder, error)
	ActiveItems(ctx context.Context, orderID int32) ([]model.OrderItem, error)
	ActiveItemLines(ctx context.Context, orderID int32) ([]model.ItemLine, error)
	DeleteActive(ctx context.Context, id int32) error
	CreatePast(ctx context.Context, p model.PastOrder) error
	CreatePastItems(ctx context.Context, items []model.OrderItem) error
	CountsByCanteen(ctx context.Context, canteenID int32) ([]model.BandItemCount, error)
	ListPastByUser(ctx context.Context, userID int32) ([]model.PastOrderDetail, error)
}

// EventPublisher receives an event after each committed transition.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.OrderEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, queue.OrderEvent) error { return nil }

const DefaultHoldTTL = 5 * time.Minute

// Lifecycle coordinates every hold and order transition.  Each public
// method runs in its own transaction; holds and orders are locked before
// the menu items they touch, and menu items in ascending id order.
type Lifecycle struct {
	tx     TxRunner
	items  MenuItemStore
	holds  HoldStore
	orders OrderStore
	stock  *StockController

	clock           clockwork.Clock
	holdTTL         time.Duration
	restoreOnCancel bool
	events          EventPublisher
	logger          *zap.Logger
}

type Option func(*Lifecycle)

func WithClock(c clockwork.Clock) Option {
	return func(l *Lifecycle) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithHoldTTL overrides the default lifetime of new holds.
func WithHoldTTL(d time.Duration) Option {
	return func(l *Lifecycle) {
		if d > 0 {
			l.holdTTL = d
		}
	}
}

// WithCancelRestoresStock makes cancelling an active order give its
// quantities back to the menu.
func WithCancelRestoresStock(restore bool) Option {
	return func(l *Lifecycle) { l.restoreOnCancel = restore }
}

func WithEvents(p EventPublisher) Option {
	return func(l *Lifecycle) {
		if p != nil {
			l.events = p
		}
	}
}

func WithLogger(z *zap.Logger) Option {
	return func(l *Lifecycle) {
		if z != nil {
			l.logger = z
		}
	}
}

func NewLifecycle(tx TxRunner, items MenuItemStore, holds HoldStore, orders OrderStore, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		tx:      tx,
		items:   items,
		holds:   holds,
		orders:  orders,
		stock:   NewStockController(items),
		clock:   clockwork.NewRealClock(),
		holdTTL: DefaultHoldTTL,
		events:  noopPublisher{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PlaceHold reserves the items in itemIDs for userID.  Repeated ids add up
// to a quantity.  band must be nil or valid; an unrecognised band is
// stored as nil.
func (l *Lifecycle) PlaceHold(ctx context.Context, userID int32, itemIDs []int32, band *model.TimeBand) (model.Hold, error) {
	if len(itemIDs) == 0 {
		return model.Hold{}, ErrEmptyCart
	}
	if band != nil && !band.Valid() {
		band = nil
	}

	req := make(map[int32]int32, len(itemIDs))
	for _, id := range itemIDs {
		req[id]++
	}
	ids := make([]int32, 0, len(req))
	for id := range req {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	now := l.clock.Now()
	var hold model.Hold
	err := l.tx.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := l.items.LockByIDs(txCtx, ids)
		if err != nil {
			return err
		}
		if len(locked) != len(ids) {
			return ErrNotFound
		}

		canteenID := locked[0].CanteenID
		for _, m := range locked[1:] {
			if m.CanteenID != canteenID {
				return ErrMultipleCanteens
			}
		}

		var total int64
		for _, m := range locked {
			qty := req[m.ID]
			if !m.IsAvailable {
				return &NotAvailableError{ItemID: m.ID, Name: m.Name, Reason: ReasonNotAvailable}
			}
			if !m.Unlimited() && m.Stock < qty {
				return &NotAvailableError{ItemID: m.ID, Name: m.Name, Reason: ReasonOutOfStock}
			}
			total += int64(m.UnitPrice) * int64(qty)
			if total > math.MaxInt32 {
				return ErrTotalTooLarge
			}
		}

		hold = model.Hold{
			UserID:     userID,
			CanteenID:  canteenID,
			TotalPrice: int32(total),
			TimeBand:   band,
			ExpiresAt:  now.Add(l.holdTTL),
		}
		if hold.ID, err = l.holds.Create(txCtx, hold); err != nil {
			return err
		}

		lines := make([]model.HoldItem, 0, len(locked))
		for _, m := range locked {
			lines = append(lines, model.HoldItem{HoldID: hold.ID, ItemID: m.ID, Quantity: req[m.ID], UnitPriceFrozen: m.UnitPrice})
		}
		if err := l.holds.CreateItems(txCtx, lines); err != nil {
			return err
		}

		for _, m := range locked {
			if err := l.stock.Reserve(txCtx, m, req[m.ID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Hold{}, err
	}

	l.publishHold(ctx, queue.EventHoldPlaced, hold)
	return hold, nil
}

// ReleaseHold gives the hold's stock back and deletes it.  Only the owner
// may release.
func (l *Lifecycle) ReleaseHold(ctx context.Context, holdID, userID int32) error {
	var hold model.Hold
	err := l.tx.WithTx(ctx, func(txCtx context.Context) error {
		h, err := l.lockOwnedHold(txCtx, holdID, userID)
		if err != nil {
			return err
		}
		hold = h
		return l.release(txCtx, h)
	})
	if err != nil {
		return err
	}
	l.publishHold(ctx, queue.EventHoldReleased, hold)
	return nil
}

// ConfirmHold turns a live hold into an active order and returns the
// order id.  A hold past its expiry is released instead; that release
// commits and ErrHoldExpired is returned.
func (l *Lifecycle) ConfirmHold(ctx context.Context, holdID, userID int32) (int32, error) {
	now := l.clock.Now()
	var (
		hold    model.Hold
		orderID int32
		expired bool
	)
	err := l.tx.WithTx(ctx, func(txCtx context.Context) error {
		h, err := l.lockOwnedHold(txCtx, holdID, userID)
		if err != nil {
			return err
		}
		hold = h
		if h.Expired(now) {
			expired = true
			return l.release(txCtx, h)
		}

		items, err := l.holds.Items(txCtx, h.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("hold %d has no items", h.ID)
		}

		orderID, err = l.orders.CreateActive(txCtx, model.ActiveOrder{
			UserID:     h.UserID,
			CanteenID:  h.CanteenID,
			TotalPrice: h.TotalPrice,
			TimeBand:   h.TimeBand,
			OrderedAt:  now,
		})
		if err != nil {
			return err
		}
		lines := make([]model.OrderItem, 0, len(items))
		for _, it := range items {
			lines = append(lines, model.OrderItem{OrderID: orderID, ItemID: it.ItemID, Quantity: it.Quantity, UnitPriceFrozen: it.UnitPriceFrozen})
		}
		if err := l.orders.CreateActiveItems(txCtx, lines); err != nil {
			return err
		}
		return l.holds.Delete(txCtx, h.ID)
	})
	if err != nil {
		return 0, err
	}
	if expired {
		l.publishHold(ctx, queue.EventHoldExpired, hold)
		return 0, ErrHoldExpired
	}

	l.publish(ctx, queue.OrderEvent{
		Type:       queue.EventOrderConfirmed,
		HoldID:     hold.ID,
		OrderID:    orderID,
		UserID:     hold.UserID,
		CanteenID:  hold.CanteenID,
		TotalPrice: hold.TotalPrice,
		DeliverAt:  model.BandLabel(hold.TimeBand),
	})
	return orderID, nil
}

// SweepExpired releases every hold that expired before now, each in its
// own transaction, and returns how many it released.  A hold confirmed or
// released since the listing is skipped; a failing hold is logged and
// does not stop the others.
func (l *Lifecycle) SweepExpired(ctx context.Context) (int, error) {
	now := l.clock.Now()
	ids, err := l.holds.ExpiredIDs(ctx, now)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		var (
			hold model.Hold
			gone bool
		)
		err := l.tx.WithTx(ctx, func(txCtx context.Context) error {
			h, err := l.holds.GetForUpdate(txCtx, id)
			if errors.Is(err, repository.ErrNotFound) {
				gone = true
				return nil
			}
			if err != nil {
				return err
			}
			if !h.Expired(now) {
				gone = true
				return nil
			}
			hold = h
			return l.release(txCtx, h)
		})
		if err != nil {
			l.logger.Error("sweep: release failed", zap.Int32("hold_id", id), zap.Error(err))
			continue
		}
		if gone {
			continue
		}
		released++
		l.publishHold(ctx, queue.EventHoldExpired, hold)
	}
	return released, nil
}

// lockOwnedHold locks the hold row and checks the requester owns it.
func (l *Lifecycle) lockOwnedHold(ctx context.Context, holdID, userID int32) (model.Hold, error) {
	h, err := l.holds.GetForUpdate(ctx, holdID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Hold{}, ErrNotFound
	}
	if err != nil {
		return model.Hold{}, err
	}
	if h.UserID != userID {
		return model.Hold{}, ErrNotOwner
	}
	return h, nil
}

// release restores the stock of a locked hold and deletes it.
func (l *Lifecycle) release(ctx context.Context, h model.Hold) error {
	items, err := l.holds.Items(ctx, h.ID)
	if err != nil {
		return err
	}
	if err := l.restore(ctx, toQuantities(items)); err != nil {
		return err
	}
	return l.holds.Delete(ctx, h.ID)
}

// restore locks the items in qty and gives the quantities back.
func (l *Lifecycle) restore(ctx context.Context, qty map[int32]int32) error {
	if len(qty) == 0 {
		return nil
	}
	ids := make([]int32, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked, err := l.items.LockByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, m := range locked {
		if err := l.stock.Restore(ctx, m, qty[m.ID]); err != nil {
			return err
		}
	}
	return nil
}

func toQuantities(items []model.HoldItem) map[int32]int32 {
	qty := make(map[int32]int32, len(items))
	for _, it := range items {
		qty[it.ItemID] += it.Quantity
	}
	return qty
}

func (l *Lifecycle) publishHold(ctx context.Context, typ string, h model.Hold) {
	l.publish(ctx, queue.OrderEvent{
		Type:       typ,
		HoldID:     h.ID,
		UserID:     h.UserID,
		CanteenID:  h.CanteenID,
		TotalPrice: h.TotalPrice,
		DeliverAt:  model.BandLabel(h.TimeBand),
	})
}

func (l *Lifecycle) publish(ctx context.Context, ev queue.OrderEvent) {
	ev.OccurredAt = l.clock.Now().UTC().Format(time.RFC3339)
	if err := l.events.Publish(ctx, ev); err != nil {
		l.logger.Warn("publish lifecycle event", zap.String("type", ev.Type), zap.Error(err))
	}
}
