package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/games-store/api/internal/orders"
)

// Store implements orders.Store on Postgres. All money columns travel as
// text so NUMERIC values round-trip into decimals without float detours.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	ptx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.ErrInternal("begin transaction", err)
	}
	defer func() { _ = ptx.Rollback(ctx) }()

	if err := fn(&storeTx{tx: ptx}); err != nil {
		var de *orders.Error
		if errors.As(err, &de) {
			return err
		}
		return orders.ErrInternal("transaction failed", err)
	}
	if err := ptx.Commit(ctx); err != nil {
		return orders.ErrInternal("commit transaction", err)
	}
	return nil
}

func (s *Store) Order(ctx context.Context, orderID string) (*orders.Order, error) {
	return loadOrder(ctx, s.DB, orderID, false)
}

func (s *Store) ListOrders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, int, error) {
	// Filters are always bound parameters; empty values disable the clause.
	const q = `SELECT id, user_id, status, total::text, delivery_address, notes, created_at, updated_at
	           FROM orders
	           WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
	           ORDER BY created_at DESC
	           LIMIT $3 OFFSET $4`
	rows, err := s.DB.Query(ctx, q, f.UserID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, orders.ErrInternal("list orders", err)
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrderHeader(rows)
		if err != nil {
			return nil, 0, orders.ErrInternal("scan order", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, orders.ErrInternal("list orders", err)
	}

	var total int
	err = s.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)`,
		f.UserID, string(f.Status)).Scan(&total)
	if err != nil {
		return nil, 0, orders.ErrInternal("count orders", err)
	}
	return out, total, nil
}

func (s *Store) Stats(ctx context.Context) (orders.Stats, error) {
	const q = `SELECT
	    COUNT(*),
	    COUNT(*) FILTER (WHERE status = 'pending'),
	    COUNT(*) FILTER (WHERE status = 'processing'),
	    COUNT(*) FILTER (WHERE status = 'shipped'),
	    COUNT(*) FILTER (WHERE status = 'delivered'),
	    COUNT(*) FILTER (WHERE status = 'cancelled'),
	    COALESCE(SUM(total) FILTER (WHERE status <> 'cancelled'), 0)::text,
	    COALESCE(ROUND(AVG(total) FILTER (WHERE status <> 'cancelled'), 2), 0)::text
	  FROM orders`

	var st orders.Stats
	var pending, processing, shipped, delivered, cancelled int
	var revenue, avg string
	err := s.DB.QueryRow(ctx, q).Scan(&st.TotalOrders,
		&pending, &processing, &shipped, &delivered, &cancelled, &revenue, &avg)
	if err != nil {
		return orders.Stats{}, orders.ErrInternal("order stats", err)
	}
	st.ByStatus = map[orders.Status]int{
		orders.StatusPending:    pending,
		orders.StatusProcessing: processing,
		orders.StatusShipped:    shipped,
		orders.StatusDelivered:  delivered,
		orders.StatusCancelled:  cancelled,
	}
	if st.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return orders.Stats{}, orders.ErrInternal("order stats", err)
	}
	if st.AvgTicket, err = decimal.NewFromString(avg); err != nil {
		return orders.Stats{}, orders.ErrInternal("order stats", err)
	}
	return st, nil
}

// storeTx is one unit of work; every method runs on the same pgx.Tx so the
// row locks it takes live until commit or rollback.
type storeTx struct{ tx pgx.Tx }

func (t *storeTx) ProductsForUpdate(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	// ORDER BY id makes the lock acquisition order deterministic across
	// transactions, which is what prevents deadlock between two orders
	// naming the same products in different sequence.
	rows, err := t.tx.Query(ctx,
		`SELECT id, name, price::text, stock, active FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]orders.Product, len(ids))
	for rows.Next() {
		var p orders.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *storeTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1 AND stock + $2 >= 0`,
		productID, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var stock int
	err = t.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.ErrNotFound("product", productID)
	}
	if err != nil {
		return err
	}
	return orders.ErrInsufficientStock(productID, -delta, stock)
}

func (t *storeTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total, delivery_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, string(o.Status), o.Total.StringFixed(2), o.ShipTo, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		_, err = t.tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, qty, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, o.ID, it.ProductID, it.Qty, it.UnitPrice.StringFixed(2), it.Subtotal.StringFixed(2))
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *storeTx) OrderForUpdate(ctx context.Context, orderID string) (*orders.Order, error) {
	return loadOrder(ctx, t.tx, orderID, true)
}

func (t *storeTx) SetOrderStatus(ctx context.Context, orderID string, st orders.Status, at time.Time) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		orderID, string(st), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound("order", orderID)
	}
	return nil
}

// querier lets loadOrder run on the pool or inside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadOrder(ctx context.Context, q querier, orderID string, forUpdate bool) (*orders.Order, error) {
	head := `SELECT id, user_id, status, total::text, delivery_address, notes, created_at, updated_at
	         FROM orders WHERE id = $1`
	if forUpdate {
		head += ` FOR UPDATE`
	}
	o, err := scanOrderHeader(q.QueryRow(ctx, head, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound("order", orderID)
	}
	if err != nil {
		return nil, orders.ErrInternal(fmt.Sprintf("load order %s", orderID), err)
	}

	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.product_id, p.name, oi.qty, oi.unit_price::text, oi.subtotal::text
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, orders.ErrInternal("load order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		it := orders.OrderItem{OrderID: orderID}
		var unit, sub string
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Qty, &unit, &sub); err != nil {
			return nil, orders.ErrInternal("scan order item", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, orders.ErrInternal("scan order item", err)
		}
		if it.Subtotal, err = decimal.NewFromString(sub); err != nil {
			return nil, orders.ErrInternal("scan order item", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, orders.ErrInternal("load order items", err)
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderHeader(r rowScanner) (*orders.Order, error) {
	var o orders.Order
	var status, total string
	err := r.Scan(&o.ID, &o.UserID, &status, &total, &o.ShipTo, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &o, nil
}
