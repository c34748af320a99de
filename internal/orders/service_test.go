package orders_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/games-store/api/internal/orders"
	"github.com/games-store/api/internal/orders/memstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture() (*orders.Service, *memstore.Store) {
	st := memstore.New()
	st.PutProduct(orders.Product{ID: "p1", Name: "Elden Ring", Price: price("59.90"), Stock: 5, Active: true})
	st.PutProduct(orders.Product{ID: "p2", Name: "Hades II", Price: price("10.00"), Stock: 2, Active: true})
	st.PutProduct(orders.Product{ID: "p3", Name: "Delisted Game", Price: price("4.99"), Stock: 9, Active: false})
	return orders.NewService(st), st
}

func TestCreateOrder(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 3}},
		orders.Meta{ShipTo: "Rua A, 123", Notes: "leave at door"})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, "Rua A, 123", o.ShipTo)
	assert.True(t, o.Total.Equal(price("179.70")), "total = %s", o.Total)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].UnitPrice.Equal(price("59.90")))
	assert.True(t, o.Items[0].Subtotal.Equal(price("179.70")))

	assert.Equal(t, 2, st.ProductStock("p1"))

	// The persisted order matches what was returned.
	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, it := range got.Items {
		sum = sum.Add(it.Subtotal)
	}
	assert.True(t, got.Total.Equal(sum), "total %s != item sum %s", got.Total, sum)
}

func TestCreateOrderPriceSnapshot(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p2", Qty: 1}}, orders.Meta{})
	require.NoError(t, err)

	// A later price change must not touch the persisted order.
	st.PutProduct(orders.Product{ID: "p2", Name: "Hades II", Price: price("99.99"), Stock: 1, Active: true})
	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(price("10.00")))
	assert.True(t, got.Total.Equal(price("10.00")))
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	svc, st := newFixture()

	_, err := svc.CreateOrder(context.Background(), "u1",
		[]orders.ItemInput{{ProductID: "p1", Qty: 10}}, orders.Meta{})
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInsufficientStock))
	assert.Contains(t, err.Error(), "p1")

	assert.Equal(t, 5, st.ProductStock("p1"))
	assert.Equal(t, 0, st.OrderCount())
}

func TestCreateOrderDuplicateLinesShareStock(t *testing.T) {
	svc, st := newFixture()

	// Two lines for the same product must be checked as one demand.
	_, err := svc.CreateOrder(context.Background(), "u1",
		[]orders.ItemInput{{ProductID: "p1", Qty: 3}, {ProductID: "p1", Qty: 3}}, orders.Meta{})
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInsufficientStock))
	assert.Equal(t, 5, st.ProductStock("p1"))
}

func TestCreateOrderMultiItemAllOrNothing(t *testing.T) {
	svc, st := newFixture()

	_, err := svc.CreateOrder(context.Background(), "u1", []orders.ItemInput{
		{ProductID: "p1", Qty: 1},
		{ProductID: "p2", Qty: 5}, // only 2 in stock
	}, orders.Meta{})
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInsufficientStock))

	assert.Equal(t, 5, st.ProductStock("p1"), "no partial decrement on the valid line")
	assert.Equal(t, 2, st.ProductStock("p2"))
	assert.Equal(t, 0, st.OrderCount())
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	svc, st := newFixture()

	_, err := svc.CreateOrder(context.Background(), "u1",
		[]orders.ItemInput{{ProductID: "p1", Qty: 1}, {ProductID: "nope", Qty: 1}}, orders.Meta{})
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindNotFound))
	assert.Equal(t, 5, st.ProductStock("p1"))
	assert.Equal(t, 0, st.OrderCount())
}

func TestCreateOrderInactiveProduct(t *testing.T) {
	svc, _ := newFixture()

	_, err := svc.CreateOrder(context.Background(), "u1",
		[]orders.ItemInput{{ProductID: "p3", Qty: 1}}, orders.Meta{})
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInsufficientStock))
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, "u1", nil, orders.Meta{})
	assert.True(t, orders.IsKind(err, orders.KindInvalidArgument))

	_, err = svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 0}}, orders.Meta{})
	assert.True(t, orders.IsKind(err, orders.KindInvalidArgument))

	_, err = svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: -2}}, orders.Meta{})
	assert.True(t, orders.IsKind(err, orders.KindInvalidArgument))

	_, err = svc.CreateOrder(ctx, "", []orders.ItemInput{{ProductID: "p1", Qty: 1}}, orders.Meta{})
	assert.True(t, orders.IsKind(err, orders.KindInvalidArgument))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{
		{ProductID: "p1", Qty: 2},
		{ProductID: "p2", Qty: 1},
	}, orders.Meta{})
	require.NoError(t, err)
	require.Equal(t, 3, st.ProductStock("p1"))
	require.Equal(t, 1, st.ProductStock("p2"))

	got, err := svc.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, 5, st.ProductStock("p1"))
	assert.Equal(t, 2, st.ProductStock("p2"))

	// Cancelling twice is rejected.
	_, err = svc.CancelOrder(ctx, o.ID)
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInvalidTransition))
	assert.Equal(t, 5, st.ProductStock("p1"), "stock restored exactly once")
}

func TestCancelShippedOrder(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 2}}, orders.Meta{})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, o.ID, "shipped")
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, o.ID)
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInvalidTransition))
	assert.Equal(t, 3, st.ProductStock("p1"), "stock untouched by failed cancel")
}

func TestCancelUnknownOrder(t *testing.T) {
	svc, _ := newFixture()
	_, err := svc.CancelOrder(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindNotFound))
}

func TestUpdateStatus(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 1}}, orders.Meta{})
	require.NoError(t, err)

	got, err := svc.UpdateStatus(ctx, o.ID, "processing")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, got.Status)

	_, err = svc.UpdateStatus(ctx, o.ID, "sold")
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInvalidArgument))

	// Updating to cancelled goes through the cancel path and restores stock.
	got, err = svc.UpdateStatus(ctx, o.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, 5, st.ProductStock("p1"))

	// Cancelled is terminal.
	_, err = svc.UpdateStatus(ctx, o.ID, "pending")
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInvalidTransition))
}

func TestUpdateStatusCancelledTooLate(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 1}}, orders.Meta{})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, o.ID, "delivered")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, o.ID, "cancelled")
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInvalidTransition))
	assert.Equal(t, 4, st.ProductStock("p1"))
}

func TestConcurrentCreateNoOversell(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()

	// Two concurrent orders of 3 against a stock of 5: exactly one wins.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 3}}, orders.Meta{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, orders.IsKind(err, orders.KindInsufficientStock), "unexpected error: %v", err)
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 2, st.ProductStock("p1"))
	assert.Equal(t, 1, st.OrderCount())
}

func TestStats(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	empty, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalOrders)
	assert.True(t, empty.Revenue.IsZero())
	assert.True(t, empty.AvgTicket.IsZero(), "average is zero, not a division error")

	o1, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 1}}, orders.Meta{}) // 59.90
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, "u2", []orders.ItemInput{{ProductID: "p2", Qty: 2}}, orders.Meta{}) // 20.00
	require.NoError(t, err)
	o3, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 1}}, orders.Meta{}) // 59.90
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, o1.ID, "shipped")
	require.NoError(t, err)
	_, err = svc.CancelOrder(ctx, o3.ID)
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalOrders)
	assert.Equal(t, 1, st.ByStatus[orders.StatusPending])
	assert.Equal(t, 1, st.ByStatus[orders.StatusShipped])
	assert.Equal(t, 1, st.ByStatus[orders.StatusCancelled])
	assert.True(t, st.Revenue.Equal(price("79.90")), "revenue excludes cancelled, got %s", st.Revenue)
	assert.True(t, st.AvgTicket.Equal(price("39.95")), "avg = %s", st.AvgTicket)

	// Reads are idempotent.
	again, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, again)
}

func TestListOrders(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(ctx, "u1", []orders.ItemInput{{ProductID: "p1", Qty: 1}}, orders.Meta{})
		require.NoError(t, err)
	}
	o, err := svc.CreateOrder(ctx, "u2", []orders.ItemInput{{ProductID: "p2", Qty: 1}}, orders.Meta{})
	require.NoError(t, err)
	_, err = svc.CancelOrder(ctx, o.ID)
	require.NoError(t, err)

	list, total, err := svc.ListOrders(ctx, orders.OrderFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 3)

	list, total, err = svc.ListOrders(ctx, orders.OrderFilter{Status: orders.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "u2", list[0].UserID)

	_, _, err = svc.ListOrders(ctx, orders.OrderFilter{Status: "bogus"})
	require.Error(t, err)
	assert.True(t, orders.IsKind(err, orders.KindInvalidArgument))

	list, total, err = svc.ListOrders(ctx, orders.OrderFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, list, 2)
}
