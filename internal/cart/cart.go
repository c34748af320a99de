// Package cart is the staging area before checkout: one active cart per
// user, quantities merged per product, prices snapshotted when an item is
// added. No stock is reserved here — that happens only when the order engine
// commits the checkout.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/games-store/api/internal/orders"
)

type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}

type Item struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Repo struct{ DB *pgxpool.Pool }

// ByUser returns the user's active cart with items, or nil if there is none.
func (r *Repo) ByUser(ctx context.Context, userID string) (*Cart, error) {
	var c Cart
	err := r.DB.QueryRow(ctx,
		`SELECT id, user_id, created_at FROM carts WHERE user_id = $1 AND active LIMIT 1`,
		userID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, orders.ErrInternal("load cart", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.product_id, p.name, ci.qty, ci.unit_price::text
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY p.name`, c.ID)
	if err != nil {
		return nil, orders.ErrInternal("load cart items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		var unit string
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Qty, &unit); err != nil {
			return nil, orders.ErrInternal("scan cart item", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, orders.ErrInternal("scan cart item", err)
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, orders.ErrInternal("load cart items", err)
	}
	return &c, nil
}

// AddItem merges the quantity into an existing line for the same product,
// snapshotting the product's current price either way.
func (r *Repo) AddItem(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, orders.ErrInvalidArgumentf("qty must be positive")
	}

	var price string
	var active bool
	err := r.DB.QueryRow(ctx, `SELECT price::text, active FROM products WHERE id = $1`, productID).
		Scan(&price, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound("product", productID)
	}
	if err != nil {
		return nil, orders.ErrInternal("load product", err)
	}
	if !active {
		return nil, orders.ErrInvalidArgumentf("product %s is not available", productID)
	}

	cartID, err := r.ensureCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, qty, unit_price)
		VALUES ($1, $2, $3, $4, $5::numeric)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, unit_price = EXCLUDED.unit_price`,
		uuid.NewString(), cartID, productID, qty, price)
	if err != nil {
		return nil, orders.ErrInternal("add cart item", err)
	}
	return r.ByUser(ctx, userID)
}

func (r *Repo) UpdateItem(ctx context.Context, itemID string, qty int) error {
	if qty <= 0 {
		return orders.ErrInvalidArgumentf("qty must be positive")
	}
	ct, err := r.DB.Exec(ctx, `UPDATE cart_items SET qty = $2 WHERE id = $1`, itemID, qty)
	if err != nil {
		return orders.ErrInternal("update cart item", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound("cart item", itemID)
	}
	return nil
}

func (r *Repo) RemoveItem(ctx context.Context, itemID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return orders.ErrInternal("remove cart item", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound("cart item", itemID)
	}
	return nil
}

// Clear empties the cart and retires it; the next AddItem starts a new one.
func (r *Repo) Clear(ctx context.Context, cartID string) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return orders.ErrInternal("clear cart", err)
	}
	if _, err := r.DB.Exec(ctx, `UPDATE carts SET active = FALSE WHERE id = $1`, cartID); err != nil {
		return orders.ErrInternal("clear cart", err)
	}
	return nil
}

// ItemInputs converts the cart lines into the order engine's input shape.
func (c *Cart) ItemInputs() []orders.ItemInput {
	out := make([]orders.ItemInput, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, orders.ItemInput{ProductID: it.ProductID, Qty: it.Qty})
	}
	return out
}

func (r *Repo) ensureCart(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx,
		`SELECT id FROM carts WHERE user_id = $1 AND active LIMIT 1`, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", orders.ErrInternal("load cart", err)
	}
	id = uuid.NewString()
	_, err = r.DB.Exec(ctx, `INSERT INTO carts (id, user_id, active) VALUES ($1, $2, TRUE)`, id, userID)
	if err != nil {
		return "", orders.ErrInternal("create cart", err)
	}
	return id, nil
}
