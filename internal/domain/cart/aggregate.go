package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/order-engine/internal/domain/aggregate"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/sirupsen/logrus"
)

const AggregateType = "Cart"

// MaxQuantityPerVariant caps how many units of one variant a cart may hold.
const MaxQuantityPerVariant = 10

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrQuantityCapped  = errors.New("variant quantity limit reached")
	ErrItemNotInCart   = errors.New("item is not in the cart")
)

// Item is one variant line in a cart. The same product in two sizes is two
// items.
type Item struct {
	ProductID string    `json:"product_id"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	AddedAt   time.Time `json:"added_at"`
}

// VariantKey identifies a cart line: product plus its chosen options.
func VariantKey(productID, size, color string) string {
	return productID + "/" + size + "/" + color
}

type Cart struct {
	ID      string          `json:"id"`
	UserID  string          `json:"user_id"`
	Items   map[string]Item `json:"items"` // variant key -> item
	Version int             `json:"version"`
}

func (c *Cart) GetID() string    { return c.ID }
func (c *Cart) GetVersion() int  { return c.Version }
func (c *Cart) SetVersion(v int) { c.Version = v }

// Subtotal sums the cart at its stored price snapshots.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// ApplyEvent applies a single event to the cart state (implements aggregate.Aggregate)
func (c *Cart) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventItemAdded:
		var data ItemAddedToCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if c.Items == nil {
			c.Items = make(map[string]Item)
		}
		c.ID = data.CartID
		c.UserID = data.UserID
		key := VariantKey(data.ProductID, data.Size, data.Color)
		if existing, ok := c.Items[key]; ok {
			existing.Quantity += data.Quantity
			if existing.Quantity > MaxQuantityPerVariant {
				existing.Quantity = MaxQuantityPerVariant
			}
			existing.UnitPrice = data.UnitPrice
			c.Items[key] = existing
		} else {
			c.Items[key] = Item{
				ProductID: data.ProductID,
				Size:      data.Size,
				Color:     data.Color,
				Quantity:  data.Quantity,
				UnitPrice: data.UnitPrice,
				AddedAt:   data.AddedAt,
			}
		}
	case EventItemRemoved:
		var data ItemRemovedFromCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		delete(c.Items, VariantKey(data.ProductID, data.Size, data.Color))
	case EventCartCleared:
		var data CartCleared
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.Items = make(map[string]Item)
	}
	c.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
	log        *logrus.Entry
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{
		eventStore: es,
		log:        logrus.WithField("component", "cart"),
	}
}

// GetCartID returns the cart ID for a user (using userID as cartID for simplicity)
func GetCartID(userID string) string {
	return "cart-" + userID
}

func (s *Service) load(ctx context.Context, cartID string) (*Cart, error) {
	c, _, err := aggregate.LoadAggregate(ctx, s.eventStore, cartID, func() *Cart {
		return &Cart{ID: cartID, Items: make(map[string]Item)}
	})
	return c, err
}

// Get returns the user's cart; an empty cart if they have none yet.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.load(ctx, GetCartID(userID))
	if err != nil {
		return nil, err
	}
	c.UserID = userID
	return c, nil
}

// AddItem puts quantity units of a variant in the cart, merging with any
// existing line for the same variant up to the per-variant cap. The price
// is snapshotted at add time.
func (s *Service) AddItem(ctx context.Context, userID, productID, size, color string, quantity int, unitPrice int64) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	cartID := GetCartID(userID)
	c, err := s.load(ctx, cartID)
	if err != nil {
		return err
	}

	key := VariantKey(productID, size, color)
	if existing, ok := c.Items[key]; ok && existing.Quantity+quantity > MaxQuantityPerVariant {
		return fmt.Errorf("%w: at most %d of the same variant", ErrQuantityCapped, MaxQuantityPerVariant)
	}
	if quantity > MaxQuantityPerVariant {
		return fmt.Errorf("%w: at most %d of the same variant", ErrQuantityCapped, MaxQuantityPerVariant)
	}

	event := ItemAddedToCart{
		CartID:    cartID,
		UserID:    userID,
		ProductID: productID,
		Size:      size,
		Color:     color,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		AddedAt:   time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, cartID, AggregateType, EventItemAdded, event)
	if err != nil {
		return err
	}
	if storedEvent != nil {
		if err := c.ApplyEvent(*storedEvent); err != nil {
			return err
		}
	}

	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, c, AggregateType); err != nil {
		s.log.WithError(err).WithField("cart_id", cartID).Warn("create snapshot")
	}

	return nil
}

// RemoveItem drops a variant line from the cart entirely.
func (s *Service) RemoveItem(ctx context.Context, userID, productID, size, color string) error {
	if productID == "" {
		return ErrInvalidProduct
	}

	cartID := GetCartID(userID)
	c, err := s.load(ctx, cartID)
	if err != nil {
		return err
	}
	if _, ok := c.Items[VariantKey(productID, size, color)]; !ok {
		return ErrItemNotInCart
	}

	event := ItemRemovedFromCart{
		CartID:    cartID,
		UserID:    userID,
		ProductID: productID,
		Size:      size,
		Color:     color,
		RemovedAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, cartID, AggregateType, EventItemRemoved, event)
	if err != nil {
		return err
	}
	if storedEvent != nil {
		if err := c.ApplyEvent(*storedEvent); err != nil {
			return err
		}
	}

	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, c, AggregateType); err != nil {
		s.log.WithError(err).WithField("cart_id", cartID).Warn("create snapshot")
	}

	return nil
}

// Clear empties the cart. Reason distinguishes a user clearing their cart
// from checkout consuming it.
func (s *Service) Clear(ctx context.Context, userID, reason string) error {
	cartID := GetCartID(userID)

	event := CartCleared{
		CartID:    cartID,
		UserID:    userID,
		Reason:    reason,
		ClearedAt: time.Now(),
	}

	_, err := s.eventStore.Append(ctx, cartID, AggregateType, EventCartCleared, event)
	return err
}
