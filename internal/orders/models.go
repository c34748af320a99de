package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view the order engine needs: price/active are read
// at order time, stock is mutated only through the ledger side of Tx.
type Product struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Stock  int
	Active bool
}

type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	ShipTo    string          `json:"delivery_address,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Items     []OrderItem     `json:"items"`
}

// OrderItem snapshots the unit price at order time; later catalog price
// changes never touch persisted orders.
type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Meta carries the optional order header fields.
type Meta struct {
	ShipTo string `json:"delivery_address,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type Stats struct {
	TotalOrders int             `json:"total_orders"`
	ByStatus    map[Status]int  `json:"by_status"`
	Revenue     decimal.Decimal `json:"revenue"`
	AvgTicket   decimal.Decimal `json:"avg_ticket"`
}
