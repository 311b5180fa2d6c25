package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/order-engine/internal/infrastructure/store"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrEmptyOrder         = errors.New("order must have at least one item")
	ErrInvalidStatus      = errors.New("invalid order status transition")
	ErrOrderAlreadyPaid   = errors.New("order is already paid")
	ErrOrderCancelled     = errors.New("order is already cancelled")
	ErrNotCancellable     = errors.New("order can no longer be cancelled")
	ErrNotDelivered       = errors.New("only delivered orders can be returned")
	ErrReturnWindowClosed = errors.New("return window has closed")
	ErrNoActiveSession    = errors.New("order has no active payment session")
	ErrInvalidAmount      = errors.New("order amounts must not be negative")
)

// validTransitions defines allowed state transitions. Cancellation and
// returns go through their own operations, so the map covers only the
// forward fulfillment chain.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed},
	StatusConfirmed:  {StatusProcessing},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {}, // returns handled separately
	StatusCancelled:  {}, // terminal state
	StatusReturned:   {}, // terminal state
}

// CanTransitionTo checks if the order can move to the target status along
// the fulfillment chain
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == target:
		return fmt.Errorf("%w: order is already %s", ErrInvalidStatus, target)
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// LineItem is a snapshot of the purchased variant at order time. Prices on
// the item never change after creation, whatever happens to the catalog.
type LineItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	ImageURL    string `json:"image_url,omitempty"`
	Size        string `json:"size,omitempty"`
	Color       string `json:"color,omitempty"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

type Address struct {
	Recipient  string `json:"recipient"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone"`
	PostalCode string `json:"postal_code"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

// HistoryEntry is one row of the append-only status trail.
type HistoryEntry struct {
	From      Status    `json:"from,omitempty"`
	To        Status    `json:"to"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// PaymentSession is the live QR payment window on a pending order.
type PaymentSession struct {
	Payload   string    `json:"payload"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its deadline.
func (p *PaymentSession) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Items           []LineItem      `json:"items"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Status          Status          `json:"status"`
	Subtotal        int64           `json:"subtotal"`
	ShippingCost    int64           `json:"shipping_cost"`
	Discount        int64           `json:"discount"`
	Total           int64           `json:"total"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	StatusHistory   []HistoryEntry  `json:"status_history"`
	Session         *PaymentSession `json:"session,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"` // Current event version
}

// Aggregate interface implementation
func (o *Order) GetID() string    { return o.ID }
func (o *Order) GetVersion() int  { return o.Version }
func (o *Order) SetVersion(v int) { o.Version = v }

func (o *Order) recordHistory(from, to Status, note, actor string, at time.Time) {
	o.StatusHistory = append(o.StatusHistory, HistoryEntry{
		From:      from,
		To:        to,
		Note:      note,
		Actor:     actor,
		ChangedAt: at,
	})
}

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderCreated:
		var data OrderCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.OrderNumber = data.OrderNumber
		o.UserID = data.UserID
		o.Items = data.Items
		o.ShippingAddress = data.ShippingAddress
		o.PaymentMethod = data.PaymentMethod
		o.PaymentStatus = PaymentPending
		o.Status = StatusPending
		o.Subtotal = data.Subtotal
		o.ShippingCost = data.ShippingCost
		o.Discount = data.Discount
		o.Total = data.Total
		o.CouponCode = data.CouponCode
		o.Notes = data.Notes
		o.CreatedAt = data.CreatedAt
		o.UpdatedAt = data.CreatedAt
		o.recordHistory("", StatusPending, "order created", "", data.CreatedAt)

	case EventOrderStatusChanged:
		var data OrderStatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = data.To
		o.UpdatedAt = data.ChangedAt
		if data.To == StatusDelivered {
			at := data.ChangedAt
			o.DeliveredAt = &at
		}
		o.recordHistory(data.From, data.To, data.Note, data.Actor, data.ChangedAt)

	case EventOrderCancelled:
		var data OrderCancelled
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.UpdatedAt = data.CancelledAt
		if data.Refunded {
			o.PaymentStatus = PaymentRefunded
		}
		o.Session = nil
		o.recordHistory(data.From, StatusCancelled, data.Reason, data.Actor, data.CancelledAt)

	case EventOrderReturned:
		var data OrderReturned
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusReturned
		o.PaymentStatus = PaymentRefunded
		o.UpdatedAt = data.ReturnedAt
		o.recordHistory(StatusDelivered, StatusReturned, data.Reason, data.Actor, data.ReturnedAt)

	case EventPaymentSessionIssued:
		var data PaymentSessionIssued
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Session = &PaymentSession{
			Payload:   data.Payload,
			IssuedAt:  data.IssuedAt,
			ExpiresAt: data.ExpiresAt,
		}
		o.UpdatedAt = data.IssuedAt

	case EventPaymentConfirmed:
		var data PaymentConfirmed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.PaymentStatus = PaymentPaid
		o.TransactionID = data.TransactionID
		at := data.PaidAt
		o.PaidAt = &at
		o.Session = nil
		from := o.Status
		o.Status = StatusConfirmed
		o.UpdatedAt = data.PaidAt
		o.recordHistory(from, StatusConfirmed, "payment confirmed", "", data.PaidAt)

	case EventPaymentCancelled:
		var data PaymentCancelled
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		from := o.Status
		o.PaymentStatus = PaymentFailed
		o.Status = StatusCancelled
		o.Session = nil
		o.UpdatedAt = data.CancelledAt
		o.recordHistory(from, StatusCancelled, data.Reason, "", data.CancelledAt)
	}
	o.Version = event.Version
	return nil
}
