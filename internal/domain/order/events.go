package order

import "time"

// Event types for order aggregate
const (
	EventOrderCreated         = "OrderCreated"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventOrderCancelled       = "OrderCancelled"
	EventOrderReturned        = "OrderReturned"
	EventPaymentSessionIssued = "PaymentSessionIssued"
	EventPaymentConfirmed     = "PaymentConfirmed"
	EventPaymentCancelled     = "PaymentCancelled"
)

// OrderCreated event data
type OrderCreated struct {
	OrderID         string     `json:"order_id"`
	OrderNumber     string     `json:"order_number"`
	UserID          string     `json:"user_id"`
	Items           []LineItem `json:"items"`
	ShippingAddress Address    `json:"shipping_address"`
	PaymentMethod   string     `json:"payment_method"`
	Subtotal        int64      `json:"subtotal"`
	ShippingCost    int64      `json:"shipping_cost"`
	Discount        int64      `json:"discount"`
	Total           int64      `json:"total"`
	CouponCode      string     `json:"coupon_code,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// OrderStatusChanged event data
type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// OrderCancelled event data
type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	From        Status    `json:"from"`
	Reason      string    `json:"reason,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	Refunded    bool      `json:"refunded"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OrderReturned event data
type OrderReturned struct {
	OrderID    string    `json:"order_id"`
	Reason     string    `json:"reason,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	ReturnedAt time.Time `json:"returned_at"`
}

// PaymentSessionIssued event data
type PaymentSessionIssued struct {
	OrderID   string    `json:"order_id"`
	Payload   string    `json:"payload"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PaymentConfirmed event data. Carries both the payment facts and the
// implied pending to confirmed transition so they land in one event.
type PaymentConfirmed struct {
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

// PaymentCancelled event data. Emitted when a payment session expires or
// the user abandons it; the order is cancelled in the same event.
type PaymentCancelled struct {
	OrderID     string    `json:"order_id"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}
