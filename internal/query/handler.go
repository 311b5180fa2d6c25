package query

import (
	"sort"
	"time"

	"github.com/example/order-engine/internal/domain/cart"
	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/readmodel"
)

type Handler struct {
	readStore store.ReadStoreInterface
}

func NewHandler(readStore store.ReadStoreInterface) *Handler {
	return &Handler{readStore: readStore}
}

// Products
func (h *Handler) GetProduct(id string) (*readmodel.ProductReadModel, bool) {
	data, ok := h.readStore.Get(readmodel.Products, id)
	if !ok {
		return nil, false
	}
	return data.(*readmodel.ProductReadModel), true
}

func (h *Handler) ListProducts() []*readmodel.ProductReadModel {
	items := h.readStore.GetAll(readmodel.Products)
	products := make([]*readmodel.ProductReadModel, 0, len(items))
	for _, item := range items {
		products = append(products, item.(*readmodel.ProductReadModel))
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
	return products
}

// Cart
func (h *Handler) GetCart(userID string) *readmodel.CartReadModel {
	cartID := cart.GetCartID(userID)
	data, ok := h.readStore.Get(readmodel.Carts, cartID)
	if !ok {
		// Return empty cart
		return &readmodel.CartReadModel{
			ID:     cartID,
			UserID: userID,
			Items:  []readmodel.CartItemReadModel{},
		}
	}
	return data.(*readmodel.CartReadModel)
}

// Orders
func (h *Handler) GetOrder(id string) (*readmodel.OrderReadModel, bool) {
	data, ok := h.readStore.Get(readmodel.Orders, id)
	if !ok {
		return nil, false
	}
	return data.(*readmodel.OrderReadModel), true
}

// GetOrderByNumber resolves a human-facing order number through the index.
func (h *Handler) GetOrderByNumber(orderNumber string) (*readmodel.OrderReadModel, bool) {
	data, ok := h.readStore.Get(readmodel.OrderNumbers, orderNumber)
	if !ok {
		return nil, false
	}
	return h.GetOrder(data.(*readmodel.OrderNumberRef).OrderID)
}

func (h *Handler) ListOrdersByUser(userID string) []*readmodel.OrderReadModel {
	items := h.readStore.GetAll(readmodel.Orders)
	orders := make([]*readmodel.OrderReadModel, 0)
	for _, item := range items {
		o := item.(*readmodel.OrderReadModel)
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sortOrders(orders)
	return orders
}

// ListAllOrders returns all orders (for admin use)
func (h *Handler) ListAllOrders() []*readmodel.OrderReadModel {
	items := h.readStore.GetAll(readmodel.Orders)
	orders := make([]*readmodel.OrderReadModel, 0, len(items))
	for _, item := range items {
		orders = append(orders, item.(*readmodel.OrderReadModel))
	}
	sortOrders(orders)
	return orders
}

// ListOrdersByStatus filters orders by lifecycle status (for admin use).
func (h *Handler) ListOrdersByStatus(status string) []*readmodel.OrderReadModel {
	items := h.readStore.GetAll(readmodel.Orders)
	orders := make([]*readmodel.OrderReadModel, 0)
	for _, item := range items {
		o := item.(*readmodel.OrderReadModel)
		if o.Status == status {
			orders = append(orders, o)
		}
	}
	sortOrders(orders)
	return orders
}

// ListOrdersWithExpiredPayment returns pending orders whose payment session
// deadline has passed. The reaper sweeps these.
func (h *Handler) ListOrdersWithExpiredPayment(now time.Time) []*readmodel.OrderReadModel {
	items := h.readStore.GetAll(readmodel.Orders)
	orders := make([]*readmodel.OrderReadModel, 0)
	for _, item := range items {
		o := item.(*readmodel.OrderReadModel)
		if o.Status != string(order.StatusPending) || o.PaymentExpiresAt == nil {
			continue
		}
		if now.After(*o.PaymentExpiresAt) {
			orders = append(orders, o)
		}
	}
	sortOrders(orders)
	return orders
}

// Inventory
func (h *Handler) GetInventory(productID string) (*readmodel.InventoryReadModel, bool) {
	data, ok := h.readStore.Get(readmodel.Inventory, productID)
	if !ok {
		return nil, false
	}
	return data.(*readmodel.InventoryReadModel), true
}

// User stats
func (h *Handler) GetUserStats(userID string) (*readmodel.UserStatsReadModel, bool) {
	data, ok := h.readStore.Get(readmodel.UserStats, userID)
	if !ok {
		return nil, false
	}
	return data.(*readmodel.UserStatsReadModel), true
}

func sortOrders(orders []*readmodel.OrderReadModel) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
