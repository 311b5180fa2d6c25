package query

import (
	"testing"
	"time"

	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/infrastructure/store/mocks"
	"github.com/example/order-engine/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *mocks.MockReadStore) {
	readStore := mocks.NewMockReadStore()
	return NewHandler(readStore), readStore
}

func TestGetProduct(t *testing.T) {
	handler, readStore := newTestHandler()

	readStore.SetData(readmodel.Products, "prod-1", &readmodel.ProductReadModel{
		ID: "prod-1", Name: "T-Shirt", Price: 120000,
	})

	p, ok := handler.GetProduct("prod-1")
	require.True(t, ok)
	assert.Equal(t, "T-Shirt", p.Name)

	_, ok = handler.GetProduct("missing")
	assert.False(t, ok)
}

func TestGetCartReturnsEmptyCartForNewUser(t *testing.T) {
	handler, _ := newTestHandler()

	c := handler.GetCart("user-1")
	require.NotNil(t, c)
	assert.Equal(t, "user-1", c.UserID)
	assert.Empty(t, c.Items)
}

func TestGetOrderByNumber(t *testing.T) {
	handler, readStore := newTestHandler()

	readStore.SetData(readmodel.Orders, "order-1", &readmodel.OrderReadModel{
		ID: "order-1", OrderNumber: "ORD-20260831-0001", UserID: "user-1",
	})
	readStore.SetData(readmodel.OrderNumbers, "ORD-20260831-0001", &readmodel.OrderNumberRef{
		OrderNumber: "ORD-20260831-0001", OrderID: "order-1",
	})

	o, ok := handler.GetOrderByNumber("ORD-20260831-0001")
	require.True(t, ok)
	assert.Equal(t, "order-1", o.ID)

	_, ok = handler.GetOrderByNumber("ORD-20260831-9999")
	assert.False(t, ok)
}

func TestListOrdersByUser(t *testing.T) {
	handler, readStore := newTestHandler()

	now := time.Now()
	readStore.SetData(readmodel.Orders, "order-1", &readmodel.OrderReadModel{
		ID: "order-1", UserID: "user-1", CreatedAt: now.Add(-time.Hour),
	})
	readStore.SetData(readmodel.Orders, "order-2", &readmodel.OrderReadModel{
		ID: "order-2", UserID: "user-1", CreatedAt: now,
	})
	readStore.SetData(readmodel.Orders, "order-3", &readmodel.OrderReadModel{
		ID: "order-3", UserID: "user-2", CreatedAt: now,
	})

	orders := handler.ListOrdersByUser("user-1")
	require.Len(t, orders, 2)
	// Newest first.
	assert.Equal(t, "order-2", orders[0].ID)
	assert.Equal(t, "order-1", orders[1].ID)
}

func TestListOrdersByStatus(t *testing.T) {
	handler, readStore := newTestHandler()

	readStore.SetData(readmodel.Orders, "order-1", &readmodel.OrderReadModel{
		ID: "order-1", Status: string(order.StatusPending),
	})
	readStore.SetData(readmodel.Orders, "order-2", &readmodel.OrderReadModel{
		ID: "order-2", Status: string(order.StatusShipped),
	})

	orders := handler.ListOrdersByStatus(string(order.StatusShipped))
	require.Len(t, orders, 1)
	assert.Equal(t, "order-2", orders[0].ID)
}

func TestListOrdersWithExpiredPayment(t *testing.T) {
	handler, readStore := newTestHandler()

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(10 * time.Minute)

	readStore.SetData(readmodel.Orders, "expired", &readmodel.OrderReadModel{
		ID: "expired", Status: string(order.StatusPending), PaymentExpiresAt: &past,
	})
	readStore.SetData(readmodel.Orders, "live", &readmodel.OrderReadModel{
		ID: "live", Status: string(order.StatusPending), PaymentExpiresAt: &future,
	})
	readStore.SetData(readmodel.Orders, "no-session", &readmodel.OrderReadModel{
		ID: "no-session", Status: string(order.StatusPending),
	})
	readStore.SetData(readmodel.Orders, "paid", &readmodel.OrderReadModel{
		ID: "paid", Status: string(order.StatusConfirmed), PaymentExpiresAt: &past,
	})

	expired := handler.ListOrdersWithExpiredPayment(now)
	require.Len(t, expired, 1)
	assert.Equal(t, "expired", expired[0].ID)
}

func TestGetInventory(t *testing.T) {
	handler, readStore := newTestHandler()

	readStore.SetData(readmodel.Inventory, "prod-1", &readmodel.InventoryReadModel{
		ProductID: "prod-1", Stock: 10, SalesCount: 5,
	})

	inv, ok := handler.GetInventory("prod-1")
	require.True(t, ok)
	assert.Equal(t, 10, inv.Stock)

	_, ok = handler.GetInventory("missing")
	assert.False(t, ok)
}

func TestGetUserStats(t *testing.T) {
	handler, readStore := newTestHandler()

	readStore.SetData(readmodel.UserStats, "user-1", &readmodel.UserStatsReadModel{
		UserID: "user-1", OrderCount: 3, TotalSpent: 450000,
	})

	stats, ok := handler.GetUserStats("user-1")
	require.True(t, ok)
	assert.Equal(t, 3, stats.OrderCount)
	assert.Equal(t, int64(450000), stats.TotalSpent)
}
