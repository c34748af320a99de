package orders

import (
	"context"
	"time"
)

// Store is the persistence contract the coordinator runs against. WithTx
// scopes one atomic unit of work: fn either commits as a whole or leaves no
// trace. The read-side methods run outside any transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Order(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Tx bundles the inventory ledger and order repository operations available
// inside one unit of work. Implementations must hold a row lock on every
// product returned by ProductsForUpdate and on the order returned by
// OrderForUpdate until the transaction ends.
type Tx interface {
	// ProductsForUpdate locks the given products in ascending id order and
	// returns them keyed by id. Missing ids are simply absent from the map.
	ProductsForUpdate(ctx context.Context, ids []string) (map[string]Product, error)

	// AdjustStock applies stock += delta. It fails with KindInsufficientStock
	// if the result would be negative and KindNotFound if the product does
	// not exist; it never commits on its own.
	AdjustStock(ctx context.Context, productID string, delta int) error

	// InsertOrder persists the header and all items as one write.
	InsertOrder(ctx context.Context, o *Order) error

	// OrderForUpdate loads an order with its items and locks its row, so a
	// racing cancel and status update serialize instead of last-writer-wins.
	OrderForUpdate(ctx context.Context, orderID string) (*Order, error)

	SetOrderStatus(ctx context.Context, orderID string, st Status, at time.Time) error
}

// OrderFilter narrows ListOrders; zero values mean "no filter". Every field
// is bound as a query parameter, never concatenated into SQL.
type OrderFilter struct {
	UserID string
	Status Status
	Limit  int
	Offset int
}
