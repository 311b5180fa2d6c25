package order

import (
	"context"
	"fmt"
	"time"

	"github.com/example/order-engine/internal/domain/aggregate"
	"github.com/example/order-engine/internal/domain/ordernumber"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/locking"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Policy carries the pricing and returns rules applied at order time.
type Policy struct {
	ShippingFlatFee       int64
	FreeShippingThreshold int64
	ReturnWindow          time.Duration
}

type Service struct {
	eventStore store.EventStoreInterface
	numbers    ordernumber.Generator
	policy     Policy
	locks      *locking.Keyed
	log        *logrus.Entry
}

func NewService(es store.EventStoreInterface, numbers ordernumber.Generator, policy Policy) *Service {
	return &Service{
		eventStore: es,
		numbers:    numbers,
		policy:     policy,
		locks:      locking.NewKeyed(),
		log:        logrus.WithField("component", "order"),
	}
}

func (s *Service) load(ctx context.Context, orderID string) (*Order, error) {
	o, found, err := aggregate.LoadAggregate(ctx, s.eventStore, orderID, func() *Order {
		return &Order{ID: orderID}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// Get returns the current state of an order rebuilt from its events.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.load(ctx, orderID)
}

// CreateParams are the inputs to order creation. Item prices are the
// caller's snapshot; the service only totals them.
type CreateParams struct {
	UserID          string
	Items           []LineItem
	ShippingAddress Address
	PaymentMethod   string
	CouponCode      string
	Discount        int64
	Notes           string
}

// Create mints an order number, prices the order and writes the creation
// event. The order starts pending with an empty payment state.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Order, error) {
	if len(params.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if params.Discount < 0 {
		return nil, ErrInvalidAmount
	}

	var subtotal int64
	for _, item := range params.Items {
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item %s", ErrInvalidAmount, item.ProductID)
		}
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	shipping := s.policy.ShippingFlatFee
	if subtotal >= s.policy.FreeShippingThreshold {
		shipping = 0
	}

	total := subtotal + shipping - params.Discount
	if total < 0 {
		return nil, fmt.Errorf("%w: discount exceeds order value", ErrInvalidAmount)
	}

	now := time.Now()
	number, err := s.numbers.Next(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("mint order number: %w", err)
	}

	orderID := uuid.New().String()
	event := OrderCreated{
		OrderID:         orderID,
		OrderNumber:     number,
		UserID:          params.UserID,
		Items:           params.Items,
		ShippingAddress: params.ShippingAddress,
		PaymentMethod:   params.PaymentMethod,
		Subtotal:        subtotal,
		ShippingCost:    shipping,
		Discount:        params.Discount,
		Total:           total,
		CouponCode:      params.CouponCode,
		Notes:           params.Notes,
		CreatedAt:       now,
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderCreated, event)
	if err != nil {
		return nil, err
	}

	o := &Order{ID: orderID}
	if err := o.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     orderID,
		"order_number": number,
		"user_id":      params.UserID,
		"total":        total,
	}).Info("order created")

	return o, nil
}

// Transition moves the order one step along the fulfillment chain. Target
// must be a forward state; cancellation and returns have their own
// operations with their own rules.
func (s *Service) Transition(ctx context.Context, orderID string, target Status, note, actor string) (*Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanTransitionTo(target) {
		return nil, o.transitionError(target)
	}

	event := OrderStatusChanged{
		OrderID:   orderID,
		From:      o.Status,
		To:        target,
		Note:      note,
		Actor:     actor,
		ChangedAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderStatusChanged, event)
	if err != nil {
		return nil, err
	}
	if err := o.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.snapshot(ctx, o)

	return o, nil
}

// Cancel voids an order that has not entered fulfillment. Paid orders are
// marked refunded in the same event.
func (s *Service) Cancel(ctx context.Context, orderID, reason, actor string) (*Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case StatusPending, StatusConfirmed:
	case StatusCancelled:
		return nil, ErrOrderCancelled
	default:
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, o.Status)
	}

	event := OrderCancelled{
		OrderID:     orderID,
		From:        o.Status,
		Reason:      reason,
		Actor:       actor,
		Refunded:    o.PaymentStatus == PaymentPaid,
		CancelledAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderCancelled, event)
	if err != nil {
		return nil, err
	}
	if err := o.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.snapshot(ctx, o)

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"refunded": event.Refunded,
	}).Info("order cancelled")

	return o, nil
}

// Return accepts a return of a delivered order within the return window,
// measured from the recorded delivery time.
func (s *Service) Return(ctx context.Context, orderID, reason, actor string) (*Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusDelivered || o.DeliveredAt == nil {
		return nil, ErrNotDelivered
	}
	if time.Since(*o.DeliveredAt) > s.policy.ReturnWindow {
		return nil, fmt.Errorf("%w: delivered at %s", ErrReturnWindowClosed, o.DeliveredAt.Format(time.RFC3339))
	}

	event := OrderReturned{
		OrderID:    orderID,
		Reason:     reason,
		Actor:      actor,
		ReturnedAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderReturned, event)
	if err != nil {
		return nil, err
	}
	if err := o.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.snapshot(ctx, o)

	return o, nil
}

// IssueSession attaches a payment session to a pending unpaid order,
// replacing any earlier one.
func (s *Service) IssueSession(ctx context.Context, orderID, payload string, issuedAt, expiresAt time.Time) (*Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == PaymentPaid {
		return nil, ErrOrderAlreadyPaid
	}
	if o.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot issue payment session in status %s", ErrInvalidStatus, o.Status)
	}

	event := PaymentSessionIssued{
		OrderID:   orderID,
		Payload:   payload,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventPaymentSessionIssued, event)
	if err != nil {
		return nil, err
	}
	if err := o.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.snapshot(ctx, o)

	return o, nil
}

// ConfirmPayment records a verified payment and moves the order to
// confirmed in one event. Confirming an already-paid order with the same
// transaction is a no-op; a different transaction is rejected.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, transactionID string, amount int64, paidAt time.Time) (*Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == PaymentPaid {
		if o.TransactionID == transactionID {
			return o, nil
		}
		return nil, fmt.Errorf("%w: transaction %s already recorded", ErrOrderAlreadyPaid, o.TransactionID)
	}
	if o.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot confirm payment in status %s", ErrInvalidStatus, o.Status)
	}

	event := PaymentConfirmed{
		OrderID:       orderID,
		TransactionID: transactionID,
		Amount:        amount,
		PaidAt:        paidAt,
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventPaymentConfirmed, event)
	if err != nil {
		return nil, err
	}
	if err := o.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.snapshot(ctx, o)

	s.log.WithFields(logrus.Fields{
		"order_id":       orderID,
		"transaction_id": transactionID,
		"amount":         amount,
	}).Info("payment confirmed")

	return o, nil
}

// CancelPaymentSession fails the payment and cancels the order in one
// event. Used for expired sessions and user aborts. Cancelling an order
// whose payment already landed, or that is already cancelled, is
// rejected so callers only release stock when a cancellation actually
// happened here.
func (s *Service) CancelPaymentSession(ctx context.Context, orderID, reason string) (*Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == PaymentPaid {
		return nil, ErrOrderAlreadyPaid
	}
	if o.Status == StatusCancelled {
		return nil, ErrOrderCancelled
	}
	if o.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot cancel payment in status %s", ErrInvalidStatus, o.Status)
	}

	event := PaymentCancelled{
		OrderID:     orderID,
		Reason:      reason,
		CancelledAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventPaymentCancelled, event)
	if err != nil {
		return nil, err
	}
	if err := o.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.snapshot(ctx, o)

	return o, nil
}

func (s *Service) snapshot(ctx context.Context, o *Order) {
	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, o, AggregateType); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warn("create snapshot")
	}
}
