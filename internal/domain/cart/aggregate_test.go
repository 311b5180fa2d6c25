package cart

import (
	"context"
	"testing"

	"github.com/example/order-engine/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := NewService(mockStore)
	ctx := context.Background()

	err := service.AddItem(ctx, "user-1", "prod-1", "M", "black", 2, 120000)
	require.NoError(t, err)

	c, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	item := c.Items[VariantKey("prod-1", "M", "black")]
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, int64(120000), item.UnitPrice)
	assert.Equal(t, int64(240000), c.Subtotal())
}

func TestAddItemMergesSameVariant(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 2, 120000))
	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 3, 120000))

	c, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[VariantKey("prod-1", "M", "black")].Quantity)
}

func TestAddItemDifferentVariantsAreSeparateLines(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 1, 120000))
	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "L", "black", 1, 120000))
	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "white", 1, 120000))

	c, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 3)
}

func TestAddItemQuantityCap(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 8, 120000))

	err := service.AddItem(ctx, "user-1", "prod-1", "M", "black", 3, 120000)
	assert.ErrorIs(t, err, ErrQuantityCapped)

	err = service.AddItem(ctx, "user-1", "prod-2", "", "", 11, 120000)
	assert.ErrorIs(t, err, ErrQuantityCapped)

	// Cap applies per variant, not per cart.
	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "L", "black", 10, 120000))
}

func TestAddItemValidation(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	assert.ErrorIs(t, service.AddItem(ctx, "user-1", "", "M", "black", 1, 100), ErrInvalidProduct)
	assert.ErrorIs(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 0, 100), ErrInvalidQuantity)
	assert.ErrorIs(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", -2, 100), ErrInvalidQuantity)
}

func TestAddItemUpdatesPriceSnapshot(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 1, 100000))
	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 1, 90000))

	c, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	// Latest add wins for the line's price snapshot.
	assert.Equal(t, int64(90000), c.Items[VariantKey("prod-1", "M", "black")].UnitPrice)
}

func TestRemoveItem(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 2, 120000))
	require.NoError(t, service.AddItem(ctx, "user-1", "prod-2", "", "", 1, 80000))

	require.NoError(t, service.RemoveItem(ctx, "user-1", "prod-1", "M", "black"))

	c, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, int64(80000), c.Subtotal())
}

func TestRemoveItemNotInCart(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())

	err := service.RemoveItem(context.Background(), "user-1", "prod-1", "M", "black")
	assert.ErrorIs(t, err, ErrItemNotInCart)
}

func TestClear(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := NewService(mockStore)
	ctx := context.Background()

	require.NoError(t, service.AddItem(ctx, "user-1", "prod-1", "M", "black", 2, 120000))
	require.NoError(t, service.Clear(ctx, "user-1", "checkout"))

	c, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, int64(0), c.Subtotal())

	last := mockStore.AppendCalls[len(mockStore.AppendCalls)-1]
	assert.Equal(t, EventCartCleared, last.EventType)
	payload, ok := last.Data.(CartCleared)
	require.True(t, ok)
	assert.Equal(t, "checkout", payload.Reason)
}

func TestGetEmptyCart(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())

	c, err := service.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, "user-1", c.UserID)
}
