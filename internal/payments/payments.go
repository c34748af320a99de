// Package payments keeps bookkeeping rows for order payments. It does not
// talk to any payment provider; the transaction_id field records the
// provider's reference when one exists.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/games-store/api/internal/orders"
)

type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Method        string          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

var methods = map[string]bool{
	"credit_card": true,
	"debit_card":  true,
	"pix":         true,
	"boleto":      true,
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, p *Payment) error {
	if p.OrderID == "" {
		return orders.ErrInvalidArgumentf("order_id is required")
	}
	if !methods[p.Method] {
		return orders.ErrInvalidArgumentf("unknown payment method %q", p.Method)
	}
	if p.Amount.IsNegative() {
		return orders.ErrInvalidArgumentf("amount must not be negative")
	}
	p.ID = uuid.NewString()
	if p.Status == "" {
		p.Status = "pending"
	}
	p.PaidAt = time.Now().UTC()

	_, err := r.DB.Exec(ctx, `
		INSERT INTO payments (id, order_id, method, amount, status, transaction_id, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.OrderID, p.Method, p.Amount.StringFixed(2), p.Status, p.TransactionID, p.PaidAt)
	if isFKViolation(err) {
		return orders.ErrNotFound("order", p.OrderID)
	}
	if err != nil {
		return orders.ErrInternal("create payment", err)
	}
	return nil
}

func (r *Repo) ByID(ctx context.Context, id string) (*Payment, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, order_id, method, amount::text, status, transaction_id, paid_at
		FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound("payment", id)
	}
	if err != nil {
		return nil, orders.ErrInternal("load payment", err)
	}
	return p, nil
}

func (r *Repo) ByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, method, amount::text, status, transaction_id, paid_at
		FROM payments WHERE order_id = $1 ORDER BY paid_at`, orderID)
	if err != nil {
		return nil, orders.ErrInternal("list payments", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, orders.ErrInternal("scan payment", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case "pending", "approved", "declined", "refunded":
	default:
		return orders.ErrInvalidArgumentf("unknown payment status %q", status)
	}
	ct, err := r.DB.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return orders.ErrInternal("update payment", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound("payment", id)
	}
	return nil
}

func isFKViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(r rowScanner) (*Payment, error) {
	var p Payment
	var amount string
	err := r.Scan(&p.ID, &p.OrderID, &p.Method, &amount, &p.Status, &p.TransactionID, &p.PaidAt)
	if err != nil {
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &p, nil
}
