package product

import (
	"context"
	"testing"

	"github.com/example/order-engine/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := NewService(mockStore)
	ctx := context.Background()

	p, err := service.Create(ctx, "T-Shirt", "TS-01", "plain tee", "https://img/ts.png", 120000)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, StatusActive, p.Status)
	assert.Equal(t, int64(120000), p.Price)

	require.Len(t, mockStore.AppendCalls, 1)
	assert.Equal(t, EventProductCreated, mockStore.AppendCalls[0].EventType)
}

func TestCreateProductValidation(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	_, err := service.Create(ctx, "", "TS-01", "", "", 100)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = service.Create(ctx, "T-Shirt", "", "", "", 100)
	assert.ErrorIs(t, err, ErrInvalidSKU)

	_, err = service.Create(ctx, "T-Shirt", "TS-01", "", "", 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestUpdateProduct(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	p, err := service.Create(ctx, "T-Shirt", "TS-01", "plain tee", "", 120000)
	require.NoError(t, err)

	require.NoError(t, service.Update(ctx, p.ID, "T-Shirt v2", "updated tee", "", 130000))

	got, err := service.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "T-Shirt v2", got.Name)
	assert.Equal(t, int64(130000), got.Price)
	// SKU is immutable after creation.
	assert.Equal(t, "TS-01", got.SKU)
}

func TestUpdateUnknownProduct(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())

	err := service.Update(context.Background(), "missing", "Name", "", "", 100)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestDiscontinueProduct(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()

	p, err := service.Create(ctx, "T-Shirt", "TS-01", "", "", 120000)
	require.NoError(t, err)

	require.NoError(t, service.Discontinue(ctx, p.ID))

	got, err := service.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDiscontinued, got.Status)

	assert.ErrorIs(t, service.Discontinue(ctx, p.ID), ErrAlreadyDiscontinued)
}
