package service

import (
	"context"

	"github.com/iliyamo/canteen-order-service/internal/model"
)

// StockController applies reservations and restorations to locked menu
// items.  Unlimited items are never written.
type StockController struct {
	items MenuItemStore
}

func NewStockController(items MenuItemStore) *StockController {
	return &StockController{items: items}
}

// Reserve decrements item by qty, clamping at zero, and clears
// availability when nothing is left.  The row must already be locked.
func (s *StockController) Reserve(ctx context.Context, item model.MenuItem, qty int32) error {
	if item.Unlimited() {
		return nil
	}
	stock := item.Stock - qty
	if stock < 0 {
		stock = 0
	}
	return s.items.UpdateStock(ctx, item.ID, stock, stock > 0)
}

// Restore gives qty back to item and marks it available.
func (s *StockController) Restore(ctx context.Context, item model.MenuItem, qty int32) error {
	if item.Unlimited() {
		return nil
	}
	return s.items.UpdateStock(ctx, item.ID, item.Stock+qty, true)
}
