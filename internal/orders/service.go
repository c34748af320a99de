package orders

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the transaction coordinator: it turns item lists into durable
// orders and reverses them on cancellation, all inside a single Store
// transaction so stock and order rows can never diverge.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CreateOrder validates every line, snapshots prices, persists the order with
// status pending and decrements stock — all or nothing. Product rows are
// locked in ascending id order so two multi-item orders touching the same
// products cannot deadlock.
func (s *Service) CreateOrder(ctx context.Context, userID string, items []ItemInput, meta Meta) (*Order, error) {
	if userID == "" {
		return nil, ErrInvalidArgumentf("user_id is required")
	}
	if len(items) == 0 {
		return nil, ErrInvalidArgumentf("order must contain at least one item")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return nil, ErrInvalidArgumentf("item product_id is required")
		}
		if it.Qty <= 0 {
			return nil, ErrInvalidArgumentf("qty for product %s must be positive", it.ProductID)
		}
	}

	// Aggregate quantities per product; the same product on two lines must
	// be checked against stock as one demand.
	need := map[string]int{}
	for _, it := range items {
		need[it.ProductID] += it.Qty
	}
	ids := sortedKeys(need)

	var out *Order
	err := s.store.WithTx(ctx, func(tx Tx) error {
		prods, err := tx.ProductsForUpdate(ctx, ids)
		if err != nil {
			return err
		}

		// Phase 1: validate everything before any mutation.
		for _, id := range ids {
			p, ok := prods[id]
			if !ok {
				return ErrNotFound("product", id)
			}
			if !p.Active {
				return ErrInsufficientStock(id, need[id], 0)
			}
			if p.Stock < need[id] {
				return ErrInsufficientStock(id, need[id], p.Stock)
			}
		}

		at := s.now().UTC()
		o := &Order{
			ID:        uuid.NewString(),
			UserID:    userID,
			Status:    StatusPending,
			ShipTo:    meta.ShipTo,
			Notes:     meta.Notes,
			CreatedAt: at,
			UpdatedAt: at,
		}
		total := decimal.Zero
		for _, it := range items {
			p := prods[it.ProductID]
			sub := p.Price.Mul(decimal.NewFromInt(int64(it.Qty)))
			o.Items = append(o.Items, OrderItem{
				ID:          uuid.NewString(),
				OrderID:     o.ID,
				ProductID:   it.ProductID,
				ProductName: p.Name,
				Qty:         it.Qty,
				UnitPrice:   p.Price,
				Subtotal:    sub,
			})
			total = total.Add(sub)
		}
		o.Total = total

		// Phase 2: mutations, still under the product locks taken above.
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.AdjustStock(ctx, id, -need[id]); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrder restores every line's stock and flips the status to cancelled
// in one transaction. The order row lock serializes it against concurrent
// status updates on the same order.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, ErrInvalidArgumentf("order id is required")
	}
	var out *Order
	err := s.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == StatusCancelled {
			return ErrInvalidTransitionf("order %s is already cancelled", orderID)
		}
		if !Cancellable(o.Status) {
			return ErrInvalidTransitionf("order %s is %s, too late to cancel", orderID, o.Status)
		}

		restore := map[string]int{}
		for _, it := range o.Items {
			restore[it.ProductID] += it.Qty
		}
		for _, id := range sortedKeys(restore) {
			if err := tx.AdjustStock(ctx, id, restore[id]); err != nil {
				return err
			}
		}

		at := s.now().UTC()
		if err := tx.SetOrderStatus(ctx, orderID, StatusCancelled, at); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.UpdatedAt = at
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus applies one status transition. Cancelling delegates to
// CancelOrder so a plain status write can never skip stock restoration.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (*Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if st == StatusCancelled {
		return s.CancelOrder(ctx, orderID)
	}

	var out *Order
	err = s.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, st) {
			return ErrInvalidTransitionf("cannot change order %s from %s to %s", orderID, o.Status, st)
		}
		at := s.now().UTC()
		if err := tx.SetOrderStatus(ctx, orderID, st, at); err != nil {
			return err
		}
		o.Status = st
		o.UpdatedAt = at
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.store.Order(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]Order, int, error) {
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return nil, 0, err
		}
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListOrders(ctx, f)
}

// Stats is a pure read over the persisted order set; revenue and average
// ticket exclude cancelled orders.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
