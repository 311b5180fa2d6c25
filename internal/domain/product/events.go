package product

import "time"

const (
	EventProductCreated      = "ProductCreated"
	EventProductUpdated      = "ProductUpdated"
	EventProductDiscontinued = "ProductDiscontinued"
)

type ProductCreated struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	Price       int64     `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProductUpdated struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	Price       int64     `json:"price"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductDiscontinued is emitted when a product is withdrawn from sale.
// Existing orders keep their snapshots; new carts cannot add it.
type ProductDiscontinued struct {
	ProductID      string    `json:"product_id"`
	DiscontinuedAt time.Time `json:"discontinued_at"`
}
