// Package memstore is an in-memory orders.Store used in tests. Transactions
// run against a staged copy of the state under one mutex, so a failed unit of
// work leaves nothing behind and concurrent transactions serialize the same
// way row locks serialize them in Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/games-store/api/internal/orders"
)

type Store struct {
	mu       sync.Mutex
	products map[string]orders.Product
	orders   map[string]*orders.Order
}

func New() *Store {
	return &Store{
		products: map[string]orders.Product{},
		orders:   map[string]*orders.Order{},
	}
}

func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) ProductStock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &tx{
		products: make(map[string]orders.Product, len(s.products)),
		orders:   make(map[string]*orders.Order, len(s.orders)),
	}
	for id, p := range s.products {
		staged.products[id] = p
	}
	for id, o := range s.orders {
		staged.orders[id] = cloneOrder(o)
	}

	if err := fn(staged); err != nil {
		return err
	}
	s.products = staged.products
	s.orders = staged.orders
	return nil
}

func (s *Store) Order(ctx context.Context, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound("order", orderID)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []orders.Order
	for _, o := range s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, *cloneOrder(o))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if f.Offset > 0 {
		if f.Offset >= len(all) {
			all = nil
		} else {
			all = all[f.Offset:]
		}
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (s *Store) Stats(ctx context.Context) (orders.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := orders.Stats{
		ByStatus:  map[orders.Status]int{},
		Revenue:   decimal.Zero,
		AvgTicket: decimal.Zero,
	}
	live := 0
	for _, o := range s.orders {
		st.TotalOrders++
		st.ByStatus[o.Status]++
		if o.Status != orders.StatusCancelled {
			st.Revenue = st.Revenue.Add(o.Total)
			live++
		}
	}
	if live > 0 {
		st.AvgTicket = st.Revenue.DivRound(decimal.NewFromInt(int64(live)), 2)
	}
	return st, nil
}

type tx struct {
	products map[string]orders.Product
	orders   map[string]*orders.Order
}

func (t *tx) ProductsForUpdate(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	out := make(map[string]orders.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *tx) AdjustStock(ctx context.Context, productID string, delta int) error {
	p, ok := t.products[productID]
	if !ok {
		return orders.ErrNotFound("product", productID)
	}
	if p.Stock+delta < 0 {
		return orders.ErrInsufficientStock(productID, -delta, p.Stock)
	}
	p.Stock += delta
	t.products[productID] = p
	return nil
}

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	t.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *tx) OrderForUpdate(ctx context.Context, orderID string) (*orders.Order, error) {
	o, ok := t.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound("order", orderID)
	}
	return cloneOrder(o), nil
}

func (t *tx) SetOrderStatus(ctx context.Context, orderID string, st orders.Status, at time.Time) error {
	o, ok := t.orders[orderID]
	if !ok {
		return orders.ErrNotFound("order", orderID)
	}
	o.Status = st
	o.UpdatedAt = at
	return nil
}

func cloneOrder(o *orders.Order) *orders.Order {
	c := *o
	c.Items = append([]orders.OrderItem(nil), o.Items...)
	return &c
}
