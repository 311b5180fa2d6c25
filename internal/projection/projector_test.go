package projection

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/example/order-engine/internal/domain/cart"
	"github.com/example/order-engine/internal/domain/inventory"
	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/domain/product"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/infrastructure/store/mocks"
	"github.com/example/order-engine/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProjector() (*Projector, *mocks.MockReadStore) {
	readStore := mocks.NewMockReadStore()
	projector := NewProjector(readStore)
	return projector, readStore
}

func makeEvent(aggregateType, eventType string, data any) []byte {
	jsonData, _ := json.Marshal(data)
	event := store.Event{
		ID:            "event-123",
		AggregateID:   "agg-123",
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
	}
	result, _ := json.Marshal(event)
	return result
}

// ============================================
// Product Event Tests
// ============================================

func TestProjector_HandleProductCreated(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	eventData := product.ProductCreated{
		ProductID: "prod-123",
		Name:      "T-Shirt",
		SKU:       "TS-01",
		Price:     120000,
		CreatedAt: time.Now(),
	}

	err := projector.HandleEvent(ctx, nil, makeEvent(product.AggregateType, product.EventProductCreated, eventData))

	require.NoError(t, err)
	data, ok := readStore.GetData(readmodel.Products, "prod-123")
	require.True(t, ok)

	prod := data.(*readmodel.ProductReadModel)
	assert.Equal(t, "T-Shirt", prod.Name)
	assert.Equal(t, "TS-01", prod.SKU)
	assert.Equal(t, int64(120000), prod.Price)
	assert.Equal(t, string(product.StatusActive), prod.Status)
}

func TestProjector_HandleProductDiscontinued(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	readStore.SetData(readmodel.Products, "prod-123", &readmodel.ProductReadModel{
		ID:     "prod-123",
		Name:   "T-Shirt",
		Status: string(product.StatusActive),
	})

	eventData := product.ProductDiscontinued{ProductID: "prod-123", DiscontinuedAt: time.Now()}
	err := projector.HandleEvent(ctx, nil, makeEvent(product.AggregateType, product.EventProductDiscontinued, eventData))

	require.NoError(t, err)
	data, _ := readStore.GetData(readmodel.Products, "prod-123")
	assert.Equal(t, string(product.StatusDiscontinued), data.(*readmodel.ProductReadModel).Status)
}

// ============================================
// Cart Event Tests
// ============================================

func TestProjector_HandleItemAdded(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	readStore.SetData(readmodel.Products, "prod-1", &readmodel.ProductReadModel{
		ID: "prod-1", Name: "T-Shirt",
	})

	eventData := cart.ItemAddedToCart{
		CartID:    "cart-user-1",
		UserID:    "user-1",
		ProductID: "prod-1",
		Size:      "M",
		Color:     "black",
		Quantity:  2,
		UnitPrice: 120000,
		AddedAt:   time.Now(),
	}
	err := projector.HandleEvent(ctx, nil, makeEvent(cart.AggregateType, cart.EventItemAdded, eventData))
	require.NoError(t, err)

	data, ok := readStore.GetData(readmodel.Carts, "cart-user-1")
	require.True(t, ok)
	c := data.(*readmodel.CartReadModel)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "T-Shirt", c.Items[0].Name)
	assert.Equal(t, int64(240000), c.Subtotal)
}

func TestProjector_HandleItemAddedMergesVariant(t *testing.T) {
	projector, _ := newTestProjector()
	ctx := context.Background()

	add := func(size string, qty int) {
		eventData := cart.ItemAddedToCart{
			CartID: "cart-user-1", UserID: "user-1", ProductID: "prod-1",
			Size: size, Color: "black", Quantity: qty, UnitPrice: 120000, AddedAt: time.Now(),
		}
		require.NoError(t, projector.HandleEvent(ctx, nil, makeEvent(cart.AggregateType, cart.EventItemAdded, eventData)))
	}

	add("M", 2)
	add("M", 1)
	add("L", 1)

	data, _ := projector.readStore.Get(readmodel.Carts, "cart-user-1")
	c := data.(*readmodel.CartReadModel)
	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(120000*4), c.Subtotal)
}

func TestProjector_HandleItemRemoved(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	readStore.SetData(readmodel.Carts, "cart-user-1", &readmodel.CartReadModel{
		ID:     "cart-user-1",
		UserID: "user-1",
		Items: []readmodel.CartItemReadModel{
			{ProductID: "prod-1", Size: "M", Color: "black", Quantity: 2, UnitPrice: 120000},
			{ProductID: "prod-2", Quantity: 1, UnitPrice: 80000},
		},
		Subtotal: 320000,
	})

	eventData := cart.ItemRemovedFromCart{
		CartID: "cart-user-1", UserID: "user-1", ProductID: "prod-1",
		Size: "M", Color: "black", RemovedAt: time.Now(),
	}
	err := projector.HandleEvent(ctx, nil, makeEvent(cart.AggregateType, cart.EventItemRemoved, eventData))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Carts, "cart-user-1")
	c := data.(*readmodel.CartReadModel)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "prod-2", c.Items[0].ProductID)
	assert.Equal(t, int64(80000), c.Subtotal)
}

func TestProjector_HandleCartCleared(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	readStore.SetData(readmodel.Carts, "cart-user-1", &readmodel.CartReadModel{
		ID:       "cart-user-1",
		Items:    []readmodel.CartItemReadModel{{ProductID: "prod-1", Quantity: 1, UnitPrice: 100}},
		Subtotal: 100,
	})

	eventData := cart.CartCleared{CartID: "cart-user-1", UserID: "user-1", ClearedAt: time.Now()}
	err := projector.HandleEvent(ctx, nil, makeEvent(cart.AggregateType, cart.EventCartCleared, eventData))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Carts, "cart-user-1")
	c := data.(*readmodel.CartReadModel)
	assert.Empty(t, c.Items)
	assert.Equal(t, int64(0), c.Subtotal)
}

// ============================================
// Order Event Tests
// ============================================

func projectOrderCreated(t *testing.T, projector *Projector, orderID, userID string, total int64) {
	t.Helper()
	eventData := order.OrderCreated{
		OrderID:     orderID,
		OrderNumber: "ORD-20260831-0001",
		UserID:      userID,
		Items: []order.LineItem{
			{ProductID: "prod-1", ProductName: "T-Shirt", SKU: "TS-01", UnitPrice: total, Quantity: 1},
		},
		ShippingAddress: order.Address{Recipient: "Jane", Line1: "1 Main St", City: "Taipei"},
		PaymentMethod:   "qr",
		Subtotal:        total,
		Total:           total,
		CreatedAt:       time.Now(),
	}
	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventOrderCreated, eventData))
	require.NoError(t, err)
}

func TestProjector_HandleOrderCreated(t *testing.T) {
	projector, readStore := newTestProjector()

	projectOrderCreated(t, projector, "order-1", "user-1", 150000)

	data, ok := readStore.GetData(readmodel.Orders, "order-1")
	require.True(t, ok)
	o := data.(*readmodel.OrderReadModel)
	assert.Equal(t, "ORD-20260831-0001", o.OrderNumber)
	assert.Equal(t, string(order.StatusPending), o.Status)
	assert.Equal(t, string(order.PaymentPending), o.PaymentStatus)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, "Jane", o.ShippingAddress.FullName)

	// Order number index entry.
	ref, ok := readStore.GetData(readmodel.OrderNumbers, "ORD-20260831-0001")
	require.True(t, ok)
	assert.Equal(t, "order-1", ref.(*readmodel.OrderNumberRef).OrderID)

	// User stats picked up the order.
	stats, ok := readStore.GetData(readmodel.UserStats, "user-1")
	require.True(t, ok)
	assert.Equal(t, 1, stats.(*readmodel.UserStatsReadModel).OrderCount)
	assert.Equal(t, int64(150000), stats.(*readmodel.UserStatsReadModel).TotalSpent)
}

func TestProjector_HandleOrderStatusChanged(t *testing.T) {
	projector, readStore := newTestProjector()

	projectOrderCreated(t, projector, "order-1", "user-1", 150000)

	deliveredAt := time.Now()
	eventData := order.OrderStatusChanged{
		OrderID: "order-1", From: order.StatusShipped, To: order.StatusDelivered,
		Actor: "admin-1", ChangedAt: deliveredAt,
	}
	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventOrderStatusChanged, eventData))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Orders, "order-1")
	o := data.(*readmodel.OrderReadModel)
	assert.Equal(t, string(order.StatusDelivered), o.Status)
	require.NotNil(t, o.DeliveredAt)
	require.Len(t, o.StatusHistory, 2)
	assert.Equal(t, "admin-1", o.StatusHistory[1].Actor)
}

func TestProjector_HandleOrderCancelledReversesStats(t *testing.T) {
	projector, readStore := newTestProjector()

	projectOrderCreated(t, projector, "order-1", "user-1", 150000)

	eventData := order.OrderCancelled{
		OrderID: "order-1", From: order.StatusConfirmed, Refunded: true, CancelledAt: time.Now(),
	}
	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventOrderCancelled, eventData))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Orders, "order-1")
	o := data.(*readmodel.OrderReadModel)
	assert.Equal(t, string(order.StatusCancelled), o.Status)
	assert.Equal(t, string(order.PaymentRefunded), o.PaymentStatus)

	stats, _ := readStore.GetData(readmodel.UserStats, "user-1")
	assert.Equal(t, 0, stats.(*readmodel.UserStatsReadModel).OrderCount)
	assert.Equal(t, int64(0), stats.(*readmodel.UserStatsReadModel).TotalSpent)
}

func TestProjector_HandleOrderReturned(t *testing.T) {
	projector, readStore := newTestProjector()

	projectOrderCreated(t, projector, "order-1", "user-1", 150000)

	eventData := order.OrderReturned{OrderID: "order-1", Reason: "wrong size", ReturnedAt: time.Now()}
	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventOrderReturned, eventData))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Orders, "order-1")
	o := data.(*readmodel.OrderReadModel)
	assert.Equal(t, string(order.StatusReturned), o.Status)
	assert.Equal(t, string(order.PaymentRefunded), o.PaymentStatus)
	last := o.StatusHistory[len(o.StatusHistory)-1]
	assert.Equal(t, "wrong size", last.Note)
}

func TestProjector_HandlePaymentSessionIssued(t *testing.T) {
	projector, readStore := newTestProjector()

	projectOrderCreated(t, projector, "order-1", "user-1", 150000)

	expires := time.Now().Add(15 * time.Minute)
	eventData := order.PaymentSessionIssued{
		OrderID: "order-1", Payload: "PAY01|M|ORD|150000", IssuedAt: time.Now(), ExpiresAt: expires,
	}
	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventPaymentSessionIssued, eventData))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Orders, "order-1")
	o := data.(*readmodel.OrderReadModel)
	assert.Equal(t, "PAY01|M|ORD|150000", o.PaymentPayload)
	require.NotNil(t, o.PaymentExpiresAt)
}

func TestProjector_HandlePaymentConfirmed(t *testing.T) {
	projector, readStore := newTestProjector()

	projectOrderCreated(t, projector, "order-1", "user-1", 150000)

	eventData := order.PaymentConfirmed{
		OrderID: "order-1", TransactionID: "tx-1", Amount: 150000, PaidAt: time.Now(),
	}
	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventPaymentConfirmed, eventData))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Orders, "order-1")
	o := data.(*readmodel.OrderReadModel)
	assert.Equal(t, string(order.StatusConfirmed), o.Status)
	assert.Equal(t, string(order.PaymentPaid), o.PaymentStatus)
	assert.Equal(t, "tx-1", o.TransactionID)
	require.NotNil(t, o.PaidAt)
	assert.Empty(t, o.PaymentPayload)
	assert.Nil(t, o.PaymentExpiresAt)
}

func TestProjector_HandlePaymentCancelled(t *testing.T) {
	projector, readStore := newTestProjector()

	projectOrderCreated(t, projector, "order-1", "user-1", 150000)

	eventData := order.PaymentCancelled{OrderID: "order-1", Reason: "payment session expired", CancelledAt: time.Now()}
	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventPaymentCancelled, eventData))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Orders, "order-1")
	o := data.(*readmodel.OrderReadModel)
	assert.Equal(t, string(order.StatusCancelled), o.Status)
	assert.Equal(t, string(order.PaymentFailed), o.PaymentStatus)

	stats, _ := readStore.GetData(readmodel.UserStats, "user-1")
	assert.Equal(t, 0, stats.(*readmodel.UserStatsReadModel).OrderCount)
}

// ============================================
// Inventory Event Tests
// ============================================

func TestProjector_HandleStockAdded(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	eventData := inventory.StockAdded{ProductID: "prod-1", Quantity: 50, AddedAt: time.Now()}
	err := projector.HandleEvent(ctx, nil, makeEvent(inventory.AggregateType, inventory.EventStockAdded, eventData))
	require.NoError(t, err)

	data, ok := readStore.GetData(readmodel.Inventory, "prod-1")
	require.True(t, ok)
	assert.Equal(t, 50, data.(*readmodel.InventoryReadModel).Stock)

	// A second restock accumulates.
	err = projector.HandleEvent(ctx, nil, makeEvent(inventory.AggregateType, inventory.EventStockAdded, eventData))
	require.NoError(t, err)
	data, _ = readStore.GetData(readmodel.Inventory, "prod-1")
	assert.Equal(t, 100, data.(*readmodel.InventoryReadModel).Stock)
}

func TestProjector_HandleStockReservedAndReleased(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	readStore.SetData(readmodel.Inventory, "prod-1", &readmodel.InventoryReadModel{ProductID: "prod-1", Stock: 10})

	reserved := inventory.StockReserved{ProductID: "prod-1", OrderID: "order-1", Quantity: 3, ReservedAt: time.Now()}
	err := projector.HandleEvent(ctx, nil, makeEvent(inventory.AggregateType, inventory.EventStockReserved, reserved))
	require.NoError(t, err)

	data, _ := readStore.GetData(readmodel.Inventory, "prod-1")
	inv := data.(*readmodel.InventoryReadModel)
	assert.Equal(t, 7, inv.Stock)
	assert.Equal(t, 3, inv.SalesCount)

	released := inventory.StockReleased{ProductID: "prod-1", OrderID: "order-1", Quantity: 3, ReleasedAt: time.Now()}
	err = projector.HandleEvent(ctx, nil, makeEvent(inventory.AggregateType, inventory.EventStockReleased, released))
	require.NoError(t, err)

	data, _ = readStore.GetData(readmodel.Inventory, "prod-1")
	inv = data.(*readmodel.InventoryReadModel)
	assert.Equal(t, 10, inv.Stock)
	assert.Equal(t, 0, inv.SalesCount)
}

func TestProjector_ReplayFromResetConverges(t *testing.T) {
	projector, readStore := newTestProjector()
	ctx := context.Background()

	history := [][]byte{
		makeEvent(inventory.AggregateType, inventory.EventStockAdded,
			inventory.StockAdded{ProductID: "prod-1", Quantity: 50, AddedAt: time.Now()}),
		makeEvent(inventory.AggregateType, inventory.EventStockReserved,
			inventory.StockReserved{ProductID: "prod-1", OrderID: "order-1", Quantity: 3, ReservedAt: time.Now()}),
	}

	replay := func() {
		for _, raw := range history {
			require.NoError(t, projector.HandleEvent(ctx, nil, raw))
		}
		projectOrderCreated(t, projector, "order-1", "user-1", 150000)
	}

	replay()

	// Restart over a persisted store: drop everything and replay the
	// same history. Counter projections must land on the same values,
	// not double.
	readStore.Reset()
	replay()

	data, ok := readStore.GetData(readmodel.Inventory, "prod-1")
	require.True(t, ok)
	assert.Equal(t, 47, data.(*readmodel.InventoryReadModel).Stock)
	assert.Equal(t, 3, data.(*readmodel.InventoryReadModel).SalesCount)

	stats, ok := readStore.GetData(readmodel.UserStats, "user-1")
	require.True(t, ok)
	assert.Equal(t, 1, stats.(*readmodel.UserStatsReadModel).OrderCount)
	assert.Equal(t, int64(150000), stats.(*readmodel.UserStatsReadModel).TotalSpent)

	data, ok = readStore.GetData(readmodel.Orders, "order-1")
	require.True(t, ok)
	assert.Len(t, data.(*readmodel.OrderReadModel).StatusHistory, 1)
}

func TestProjector_IgnoresUnknownAggregate(t *testing.T) {
	projector, _ := newTestProjector()

	err := projector.HandleEvent(context.Background(), nil, makeEvent("Unknown", "SomethingHappened", map[string]string{}))
	assert.NoError(t, err)
}

func TestProjector_RejectsMalformedPayload(t *testing.T) {
	projector, _ := newTestProjector()

	err := projector.HandleEvent(context.Background(), nil, []byte("not json"))
	assert.Error(t, err)
}
