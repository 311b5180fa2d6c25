package command

// Product Commands
type CreateProduct struct {
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
}

type UpdateProduct struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Price       int64  `json:"price"`
}

type DiscontinueProduct struct {
	ProductID string `json:"product_id"`
}

type Restock struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart Commands
type AddToCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type RemoveFromCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type ClearCart struct {
	UserID string `json:"user_id"`
}

// MergeGuestCart folds a guest session's cart lines into the user's cart
// after login.
type MergeGuestCart struct {
	UserID string          `json:"user_id"`
	Items  []GuestCartItem `json:"items"`
}

type GuestCartItem struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

// Order Commands
type PlaceOrder struct {
	UserID        string `json:"user_id"`
	Recipient     string `json:"recipient"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	PostalCode    string `json:"postal_code"`
	Line1         string `json:"line1"`
	Line2         string `json:"line2"`
	City          string `json:"city"`
	Country       string `json:"country"`
	PaymentMethod string `json:"payment_method"`
	CouponCode    string `json:"coupon_code"`
	Discount      int64  `json:"discount"`
	Notes         string `json:"notes"`
}

type TransitionOrder struct {
	OrderID string `json:"order_id"`
	Target  string `json:"target"`
	Note    string `json:"note"`
	Actor   string `json:"actor"`
}

type CancelOrder struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
	Actor   string `json:"actor"`
}

type ReturnOrder struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
	Actor   string `json:"actor"`
}

// Payment Commands
type IssuePaymentSession struct {
	OrderID string `json:"order_id"`
}

type ConfirmPayment struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}

type AbortPayment struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
