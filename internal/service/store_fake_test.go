package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/canteen-order-service/internal/model"
	"github.com/iliyamo/canteen-order-service/internal/queue"
	"github.com/iliyamo/canteen-order-service/internal/repository"
)

// memStore is an in-memory stand-in for every repository.  WithTx
// serialises transactions and restores a snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	canteens    map[int32]model.Canteen
	items       map[int32]model.MenuItem
	holds       map[int32]model.Hold
	holdItems   map[int32][]model.HoldItem
	active      map[int32]model.ActiveOrder
	activeItems map[int32][]model.OrderItem
	past        map[int32]model.PastOrder
	pastItems   map[int32][]model.OrderItem
	nextHold    int32
	nextOrder   int32

	failHoldDelete map[int32]bool
	locks          [][]int32
}

func newMemStore() *memStore {
	return &memStore{
		canteens:       map[int32]model.Canteen{},
		items:          map[int32]model.MenuItem{},
		holds:          map[int32]model.Hold{},
		holdItems:      map[int32][]model.HoldItem{},
		active:         map[int32]model.ActiveOrder{},
		activeItems:    map[int32][]model.OrderItem{},
		past:           map[int32]model.PastOrder{},
		pastItems:      map[int32][]model.OrderItem{},
		failHoldDelete: map[int32]bool{},
	}
}

func (s *memStore) addItem(m model.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[m.ID] = m
}

func (s *memStore) item(id int32) model.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

type snapshot struct {
	items       map[int32]model.MenuItem
	holds       map[int32]model.Hold
	holdItems   map[int32][]model.HoldItem
	active      map[int32]model.ActiveOrder
	activeItems map[int32][]model.OrderItem
	past        map[int32]model.PastOrder
	pastItems   map[int32][]model.OrderItem
	nextHold    int32
	nextOrder   int32
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySlices[K comparable, V any](m map[K][]V) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{
		items:       copyMap(s.items),
		holds:       copyMap(s.holds),
		holdItems:   copySlices(s.holdItems),
		active:      copyMap(s.active),
		activeItems: copySlices(s.activeItems),
		past:        copyMap(s.past),
		pastItems:   copySlices(s.pastItems),
		nextHold:    s.nextHold,
		nextOrder:   s.nextOrder,
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.items, s.holds, s.holdItems = snap.items, snap.holds, snap.holdItems
		s.active, s.activeItems = snap.active, snap.activeItems
		s.past, s.pastItems = snap.past, snap.pastItems
		s.nextHold, s.nextOrder = snap.nextHold, snap.nextOrder
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) LockByIDs(_ context.Context, ids []int32) ([]model.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, append([]int32(nil), ids...))
	var out []model.MenuItem
	for _, id := range ids {
		if m, ok := s.items[id]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateStock(_ context.Context, id, stock int32, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.Stock, m.IsAvailable = stock, available
	s.items[id] = m
	return nil
}

func (s *memStore) Create(_ context.Context, h model.Hold) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHold++
	h.ID = s.nextHold
	s.holds[h.ID] = h
	return h.ID, nil
}

func (s *memStore) CreateItems(_ context.Context, items []model.HoldItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.holdItems[it.HoldID] = append(s.holdItems[it.HoldID], it)
	}
	return nil
}

func (s *memStore) GetForUpdate(_ context.Context, id int32) (model.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[id]
	if !ok {
		return model.Hold{}, repository.ErrNotFound
	}
	return h, nil
}

func (s *memStore) Items(_ context.Context, holdID int32) ([]model.HoldItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.HoldItem(nil), s.holdItems[holdID]...), nil
}

func (s *memStore) Delete(_ context.Context, id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHoldDelete[id] {
		return errors.New("disk on fire")
	}
	delete(s.holdItems, id)
	delete(s.holds, id)
	return nil
}

func (s *memStore) ExpiredIDs(_ context.Context, now time.Time) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int32
	for id, h := range s.holds {
		if h.ExpiresAt.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memStore) CreateActive(_ context.Context, o model.ActiveOrder) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOrder++
	o.ID = s.nextOrder
	s.active[o.ID] = o
	return o.ID, nil
}

func (s *memStore) CreateActiveItems(_ context.Context, items []model.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.activeItems[it.OrderID] = append(s.activeItems[it.OrderID], it)
	}
	return nil
}

func (s *memStore) GetActive(_ context.Context, id int32) (model.ActiveOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.active[id]
	if !ok {
		return model.ActiveOrder{}, repository.ErrNotFound
	}
	return o, nil
}

func (s *memStore) GetActiveForUpdate(ctx context.Context, id int32) (model.ActiveOrder, error) {
	return s.GetActive(ctx, id)
}

func (s *memStore) ActiveItems(_ context.Context, orderID int32) ([]model.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderItem(nil), s.activeItems[orderID]...), nil
}

func (s *memStore) ActiveItemLines(_ context.Context, orderID int32) ([]model.ItemLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines []model.ItemLine
	for _, it := range s.activeItems[orderID] {
		lines = append(lines, model.ItemLine{ItemID: it.ItemID, Name: s.items[it.ItemID].Name, Quantity: it.Quantity, UnitPrice: it.UnitPriceFrozen})
	}
	return lines, nil
}

func (s *memStore) DeleteActive(_ context.Context, id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeItems, id)
	delete(s.active, id)
	return nil
}

func (s *memStore) CreatePast(_ context.Context, p model.PastOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.past[p.ID]; dup {
		return errors.New("duplicate past order")
	}
	s.past[p.ID] = p
	return nil
}

func (s *memStore) CreatePastItems(_ context.Context, items []model.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.pastItems[it.OrderID] = append(s.pastItems[it.OrderID], it)
	}
	return nil
}

func (s *memStore) CountsByCanteen(_ context.Context, canteenID int32) ([]model.BandItemCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct {
		band string
		item int32
	}
	sums := map[key]int64{}
	bands := map[string]*model.TimeBand{}
	for id, o := range s.active {
		if o.CanteenID != canteenID {
			continue
		}
		label := model.BandLabel(o.TimeBand)
		bands[label] = o.TimeBand
		for _, it := range s.activeItems[id] {
			sums[key{label, it.ItemID}] += int64(it.Quantity)
		}
	}
	var rows []model.BandItemCount
	for k, q := range sums {
		rows = append(rows, model.BandItemCount{
			TimeBand:  bands[k.band],
			ItemCount: model.ItemCount{ItemID: k.item, Name: s.items[k.item].Name, Quantity: q},
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemID < rows[j].ItemID })
	return rows, nil
}

func (s *memStore) ListPastByUser(_ context.Context, userID int32) ([]model.PastOrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.PastOrderDetail{}
	for id, p := range s.past {
		if p.UserID != userID {
			continue
		}
		var lines []model.ItemLine
		for _, it := range s.pastItems[id] {
			lines = append(lines, model.ItemLine{ItemID: it.ItemID, Name: s.items[it.ItemID].Name, Quantity: it.Quantity, UnitPrice: it.UnitPriceFrozen})
		}
		out = append(out, model.PastOrderDetail{
			OrderID:     p.ID,
			CanteenID:   p.CanteenID,
			CanteenName: s.canteens[p.CanteenID].Name,
			TotalPrice:  p.TotalPrice,
			DeliverAt:   model.BandLabel(p.TimeBand),
			OrderStatus: p.Delivered,
			OrderedAt:   p.OrderedAt,
			FinalizedAt: p.FinalizedAt,
			Items:       lines,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID > out[j].OrderID })
	return out, nil
}

func (s *memStore) GetByUsername(_ context.Context, username string) (model.Canteen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.canteens {
		if c.OperatorUsername == username {
			return c, nil
		}
	}
	return model.Canteen{}, repository.ErrNotFound
}

// conserved sums stock, held, active and delivered quantities of a
// finite-stock item.
func (s *memStore) conserved(itemID int32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.items[itemID].Stock
	for _, items := range s.holdItems {
		for _, it := range items {
			if it.ItemID == itemID {
				total += it.Quantity
			}
		}
	}
	for _, items := range s.activeItems {
		for _, it := range items {
			if it.ItemID == itemID {
				total += it.Quantity
			}
		}
	}
	for id, items := range s.pastItems {
		if !s.past[id].Delivered {
			continue
		}
		for _, it := range items {
			if it.ItemID == itemID {
				total += it.Quantity
			}
		}
	}
	return total
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
