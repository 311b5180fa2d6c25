package readmodel

import "time"

// Collection names used across read stores and the projector.
const (
	Products     = "products"
	Carts        = "carts"
	Orders       = "orders"
	Inventory    = "inventory"
	OrderNumbers = "order_numbers"
	UserStats    = "user_stats"
)

// ProductReadModel is the read model for catalog products
type ProductReadModel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SKU         string    `json:"sku"`
	ImageURL    string    `json:"image_url,omitempty"`
	Price       int64     `json:"price"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartItemReadModel represents one cart line
type CartItemReadModel struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	UnitPrice int64     `json:"unit_price"`
	AddedAt   time.Time `json:"added_at"`
}

// CartReadModel is the read model for shopping carts
type CartReadModel struct {
	ID       string              `json:"id"`
	UserID   string              `json:"user_id"`
	Items    []CartItemReadModel `json:"items"`
	Subtotal int64               `json:"subtotal"`
}

// AddressReadModel is the shipping address snapshot on an order
type AddressReadModel struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
}

// OrderItemReadModel represents one order line item snapshot
type OrderItemReadModel struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	ImageURL  string `json:"image_url,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// StatusHistoryReadModel is one entry of an order's status audit trail
type StatusHistoryReadModel struct {
	Status string    `json:"status"`
	Note   string    `json:"note,omitempty"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}

// OrderReadModel is the read model for orders
type OrderReadModel struct {
	ID               string                   `json:"id"`
	OrderNumber      string                   `json:"order_number"`
	UserID           string                   `json:"user_id"`
	Items            []OrderItemReadModel     `json:"items"`
	ShippingAddress  AddressReadModel         `json:"shipping_address"`
	PaymentMethod    string                   `json:"payment_method"`
	PaymentStatus    string                   `json:"payment_status"`
	Status           string                   `json:"status"`
	Subtotal         int64                    `json:"subtotal"`
	ShippingCost     int64                    `json:"shipping_cost"`
	Discount         int64                    `json:"discount"`
	Total            int64                    `json:"total"`
	StatusHistory    []StatusHistoryReadModel `json:"status_history"`
	PaymentPayload   string                   `json:"payment_payload,omitempty"`
	PaymentExpiresAt *time.Time               `json:"payment_expires_at,omitempty"`
	TransactionID    string                   `json:"transaction_id,omitempty"`
	PaidAt           *time.Time               `json:"paid_at,omitempty"`
	DeliveredAt      *time.Time               `json:"delivered_at,omitempty"`
	Notes            string                   `json:"notes,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// InventoryReadModel is the read model for stock counters
type InventoryReadModel struct {
	ProductID  string `json:"product_id"`
	Stock      int    `json:"stock"`
	SalesCount int    `json:"sales_count"`
}

// OrderNumberRef maps a human-facing order number to the internal order ID
type OrderNumberRef struct {
	OrderNumber string `json:"order_number"`
	OrderID     string `json:"order_id"`
}

// UserStatsReadModel tracks running totals per user, reversed on cancel/return
type UserStatsReadModel struct {
	UserID     string    `json:"user_id"`
	OrderCount int       `json:"order_count"`
	TotalSpent int64     `json:"total_spent"`
	UpdatedAt  time.Time `json:"updated_at"`
}
