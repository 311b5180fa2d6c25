package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/order-engine/internal/domain/ordernumber"
	"github.com/example/order-engine/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{
	ShippingFlatFee:       30000,
	FreeShippingThreshold: 500000,
	ReturnWindow:          7 * 24 * time.Hour,
}

func newTestService(mockStore *mocks.MockEventStore) *Service {
	return NewService(mockStore, ordernumber.NewMemorySequence("ORD"), testPolicy)
}

func testItems() []LineItem {
	return []LineItem{
		{ProductID: "prod-1", ProductName: "T-Shirt", SKU: "TS-01", Size: "M", Color: "black", UnitPrice: 120000, Quantity: 2},
		{ProductID: "prod-2", ProductName: "Cap", SKU: "CP-01", UnitPrice: 80000, Quantity: 1},
	}
}

func testAddress() Address {
	return Address{Recipient: "Jane Doe", Phone: "0900000000", PostalCode: "100", Line1: "1 Main St", City: "Taipei", Country: "TW"}
}

func createTestOrder(t *testing.T, service *Service) *Order {
	t.Helper()
	o, err := service.Create(context.Background(), CreateParams{
		UserID:          "user-1",
		Items:           testItems(),
		ShippingAddress: testAddress(),
		PaymentMethod:   "qr",
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrder(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := newTestService(mockStore)

	o := createTestOrder(t, service)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, int64(320000), o.Subtotal)
	assert.Equal(t, int64(30000), o.ShippingCost)
	assert.Equal(t, int64(350000), o.Total)

	// Creation opens the status history.
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, StatusPending, o.StatusHistory[0].To)

	require.Len(t, mockStore.AppendCalls, 1)
	assert.Equal(t, EventOrderCreated, mockStore.AppendCalls[0].EventType)
}

func TestCreateOrderNumberFormat(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())

	first := createTestOrder(t, service)
	second := createTestOrder(t, service)

	day := time.Now().Format("20060102")
	assert.Equal(t, "ORD-"+day+"-0001", first.OrderNumber)
	assert.Equal(t, "ORD-"+day+"-0002", second.OrderNumber)
}

func TestCreateFreeShippingAboveThreshold(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())

	o, err := service.Create(context.Background(), CreateParams{
		UserID:          "user-1",
		Items:           []LineItem{{ProductID: "prod-1", UnitPrice: 250000, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "qr",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500000), o.Subtotal)
	assert.Equal(t, int64(0), o.ShippingCost)
	assert.Equal(t, int64(500000), o.Total)
}

func TestCreateEmptyOrder(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())

	_, err := service.Create(context.Background(), CreateParams{UserID: "user-1"})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreateRejectsNegativeAmounts(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())

	_, err := service.Create(context.Background(), CreateParams{
		UserID: "user-1",
		Items:  []LineItem{{ProductID: "prod-1", UnitPrice: -5, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = service.Create(context.Background(), CreateParams{
		UserID:   "user-1",
		Items:    []LineItem{{ProductID: "prod-1", UnitPrice: 1000, Quantity: 1}},
		Discount: 500000,
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTransitionChain(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := newTestService(mockStore)
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)

	for _, target := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		o, err = service.Transition(ctx, o.ID, target, "", "admin-1")
		require.NoError(t, err)
		assert.Equal(t, target, o.Status)
	}

	require.NotNil(t, o.DeliveredAt)
	// created, confirmed, processing, shipped, delivered
	assert.Len(t, o.StatusHistory, 5)
	last := o.StatusHistory[len(o.StatusHistory)-1]
	assert.Equal(t, StatusShipped, last.From)
	assert.Equal(t, StatusDelivered, last.To)
	assert.Equal(t, "admin-1", last.Actor)
}

func TestTransitionSkipRejected(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)

	_, err := service.Transition(ctx, o.ID, StatusShipped, "", "admin-1")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// pending cannot jump to confirmed except through payment
	_, err = service.Transition(ctx, o.ID, StatusDelivered, "", "admin-1")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTransitionUnknownOrder(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())

	_, err := service.Transition(context.Background(), "missing", StatusProcessing, "", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelPendingOrder(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	o, err := service.Cancel(ctx, o.ID, "changed my mind", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
}

func TestCancelPaidOrderMarksRefunded(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)

	o, err = service.Cancel(ctx, o.ID, "", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
}

func TestCancelShippedOrderRejected(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)
	_, err = service.Transition(ctx, o.ID, StatusProcessing, "", "")
	require.NoError(t, err)
	_, err = service.Transition(ctx, o.ID, StatusShipped, "", "")
	require.NoError(t, err)

	_, err = service.Cancel(ctx, o.ID, "", "user-1")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelTwiceRejected(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.Cancel(ctx, o.ID, "", "user-1")
	require.NoError(t, err)

	_, err = service.Cancel(ctx, o.ID, "", "user-1")
	assert.ErrorIs(t, err, ErrOrderCancelled)
}

func deliverOrder(t *testing.T, service *Service, ctx context.Context, orderID string) *Order {
	t.Helper()
	o, err := service.Get(ctx, orderID)
	require.NoError(t, err)
	_, err = service.ConfirmPayment(ctx, orderID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)
	for _, target := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		o, err = service.Transition(ctx, orderID, target, "", "")
		require.NoError(t, err)
	}
	return o
}

func TestReturnDeliveredOrder(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	deliverOrder(t, service, ctx, o.ID)

	o, err := service.Return(ctx, o.ID, "wrong size", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, o.Status)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
}

func TestReturnUndeliveredRejected(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.Return(ctx, o.ID, "", "user-1")
	assert.ErrorIs(t, err, ErrNotDelivered)
}

func TestReturnWindowClosed(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := newTestService(mockStore)
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)
	_, err = service.Transition(ctx, o.ID, StatusProcessing, "", "")
	require.NoError(t, err)
	_, err = service.Transition(ctx, o.ID, StatusShipped, "", "")
	require.NoError(t, err)

	// Deliver with a timestamp past the window by injecting the event.
	delivered := OrderStatusChanged{
		OrderID:   o.ID,
		From:      StatusShipped,
		To:        StatusDelivered,
		ChangedAt: time.Now().Add(-8 * 24 * time.Hour),
	}
	require.NoError(t, mockStore.AddEvent(o.ID, AggregateType, EventOrderStatusChanged, delivered))

	_, err = service.Return(ctx, o.ID, "", "user-1")
	assert.ErrorIs(t, err, ErrReturnWindowClosed)
}

func TestIssueSession(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	issued := time.Now()
	expires := issued.Add(15 * time.Minute)

	o, err := service.IssueSession(ctx, o.ID, "PAY|ORD|350000", issued, expires)
	require.NoError(t, err)
	require.NotNil(t, o.Session)
	assert.Equal(t, "PAY|ORD|350000", o.Session.Payload)
	assert.False(t, o.Session.Expired(issued))
	assert.True(t, o.Session.Expired(expires.Add(time.Second)))
}

func TestIssueSessionReplacesPrevious(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	now := time.Now()
	_, err := service.IssueSession(ctx, o.ID, "first", now, now.Add(15*time.Minute))
	require.NoError(t, err)

	o, err = service.IssueSession(ctx, o.ID, "second", now, now.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "second", o.Session.Payload)
}

func TestIssueSessionOnPaidOrderRejected(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)

	_, err = service.IssueSession(ctx, o.ID, "p", time.Now(), time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
}

func TestConfirmPayment(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := newTestService(mockStore)
	ctx := context.Background()

	o := createTestOrder(t, service)
	paidAt := time.Now()
	o, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, paidAt)
	require.NoError(t, err)

	// Payment facts and the confirmed transition land together.
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "tx-1", o.TransactionID)
	require.NotNil(t, o.PaidAt)
	assert.Nil(t, o.Session)

	var confirmEvents int
	for _, call := range mockStore.AppendCalls {
		if call.AggregateID == o.ID && call.EventType == EventPaymentConfirmed {
			confirmEvents++
		}
	}
	assert.Equal(t, 1, confirmEvents)
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := newTestService(mockStore)
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)
	appendsAfterFirst := len(mockStore.AppendCalls)

	// Same transaction again: success, no new event.
	again, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, again.PaymentStatus)
	assert.Len(t, mockStore.AppendCalls, appendsAfterFirst)

	// Different transaction: rejected.
	_, err = service.ConfirmPayment(ctx, o.ID, "tx-2", o.Total, time.Now())
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
}

func TestCancelPaymentSession(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	now := time.Now()
	_, err := service.IssueSession(ctx, o.ID, "p", now, now.Add(15*time.Minute))
	require.NoError(t, err)

	o, err = service.CancelPaymentSession(ctx, o.ID, "session expired")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentFailed, o.PaymentStatus)
	assert.Nil(t, o.Session)
}

func TestCancelPaymentSessionTwiceRejected(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := newTestService(mockStore)
	ctx := context.Background()

	o := createTestOrder(t, service)
	now := time.Now()
	_, err := service.IssueSession(ctx, o.ID, "p", now, now.Add(15*time.Minute))
	require.NoError(t, err)

	_, err = service.CancelPaymentSession(ctx, o.ID, "user abort")
	require.NoError(t, err)
	appendsAfterCancel := len(mockStore.AppendCalls)

	// A second abort must not look like a fresh cancellation, or callers
	// would restore the order's stock twice.
	_, err = service.CancelPaymentSession(ctx, o.ID, "user abort")
	assert.ErrorIs(t, err, ErrOrderCancelled)
	assert.Len(t, mockStore.AppendCalls, appendsAfterCancel)
}

func TestCancelPaymentSessionAfterPaidRejected(t *testing.T) {
	service := newTestService(mocks.NewMockEventStore())
	ctx := context.Background()

	o := createTestOrder(t, service)
	_, err := service.ConfirmPayment(ctx, o.ID, "tx-1", o.Total, time.Now())
	require.NoError(t, err)

	_, err = service.CancelPaymentSession(ctx, o.ID, "expired")
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
}

func TestAppendFailurePropagates(t *testing.T) {
	mockStore := mocks.NewMockEventStore()
	service := newTestService(mockStore)

	mockStore.AppendErr = errors.New("store down")
	_, err := service.Create(context.Background(), CreateParams{
		UserID:          "user-1",
		Items:           testItems(),
		ShippingAddress: testAddress(),
	})
	assert.Error(t, err)
}
