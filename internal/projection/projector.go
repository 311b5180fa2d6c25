// Package projection builds the query-side read models from the event
// stream. The projector is the single writer of the read store. Counter
// projections apply per-event deltas, so a full replay must start from a
// reset store (see ReadStoreInterface.Reset); given the same history it
// then converges to the same state.
package projection

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/order-engine/internal/domain/cart"
	"github.com/example/order-engine/internal/domain/inventory"
	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/domain/product"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/readmodel"
	"github.com/sirupsen/logrus"
)

type Projector struct {
	readStore store.ReadStoreInterface
	log       *logrus.Entry
}

func NewProjector(readStore store.ReadStoreInterface) *Projector {
	return &Projector{
		readStore: readStore,
		log:       logrus.WithField("component", "projector"),
	}
}

func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
	}).Debug("projecting event")

	switch event.AggregateType {
	case product.AggregateType:
		return p.handleProductEvent(event)
	case cart.AggregateType:
		return p.handleCartEvent(event)
	case order.AggregateType:
		return p.handleOrderEvent(event)
	case inventory.AggregateType:
		return p.handleInventoryEvent(event)
	}

	return nil
}

func (p *Projector) handleProductEvent(event store.Event) error {
	switch event.EventType {
	case product.EventProductCreated:
		var e product.ProductCreated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Set(readmodel.Products, e.ProductID, &readmodel.ProductReadModel{
			ID:          e.ProductID,
			Name:        e.Name,
			SKU:         e.SKU,
			Description: e.Description,
			ImageURL:    e.ImageURL,
			Price:       e.Price,
			Status:      string(product.StatusActive),
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.CreatedAt,
		})

	case product.EventProductUpdated:
		var e product.ProductUpdated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Products, e.ProductID, func(current any) any {
			prod := current.(*readmodel.ProductReadModel)
			prod.Name = e.Name
			prod.Description = e.Description
			prod.ImageURL = e.ImageURL
			prod.Price = e.Price
			prod.UpdatedAt = e.UpdatedAt
			return prod
		})

	case product.EventProductDiscontinued:
		var e product.ProductDiscontinued
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Products, e.ProductID, func(current any) any {
			prod := current.(*readmodel.ProductReadModel)
			prod.Status = string(product.StatusDiscontinued)
			prod.UpdatedAt = e.DiscontinuedAt
			return prod
		})
	}

	return nil
}

func (p *Projector) handleCartEvent(event store.Event) error {
	switch event.EventType {
	case cart.EventItemAdded:
		var e cart.ItemAddedToCart
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}

		productName := ""
		if prod, ok := p.readStore.Get(readmodel.Products, e.ProductID); ok {
			productName = prod.(*readmodel.ProductReadModel).Name
		}

		newItem := readmodel.CartItemReadModel{
			ProductID: e.ProductID,
			Name:      productName,
			Quantity:  e.Quantity,
			Size:      e.Size,
			Color:     e.Color,
			UnitPrice: e.UnitPrice,
			AddedAt:   e.AddedAt,
		}

		if _, ok := p.readStore.Get(readmodel.Carts, e.CartID); !ok {
			p.readStore.Set(readmodel.Carts, e.CartID, &readmodel.CartReadModel{
				ID:       e.CartID,
				UserID:   e.UserID,
				Items:    []readmodel.CartItemReadModel{newItem},
				Subtotal: e.UnitPrice * int64(e.Quantity),
			})
			return nil
		}

		p.readStore.Update(readmodel.Carts, e.CartID, func(current any) any {
			c := current.(*readmodel.CartReadModel)
			found := false
			for i, item := range c.Items {
				if sameVariant(item, e.ProductID, e.Size, e.Color) {
					c.Items[i].Quantity += e.Quantity
					if c.Items[i].Quantity > cart.MaxQuantityPerVariant {
						c.Items[i].Quantity = cart.MaxQuantityPerVariant
					}
					c.Items[i].UnitPrice = e.UnitPrice
					found = true
					break
				}
			}
			if !found {
				c.Items = append(c.Items, newItem)
			}
			c.Subtotal = cartSubtotal(c.Items)
			return c
		})

	case cart.EventItemRemoved:
		var e cart.ItemRemovedFromCart
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Carts, e.CartID, func(current any) any {
			c := current.(*readmodel.CartReadModel)
			kept := c.Items[:0]
			for _, item := range c.Items {
				if !sameVariant(item, e.ProductID, e.Size, e.Color) {
					kept = append(kept, item)
				}
			}
			c.Items = kept
			c.Subtotal = cartSubtotal(c.Items)
			return c
		})

	case cart.EventCartCleared:
		var e cart.CartCleared
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Carts, e.CartID, func(current any) any {
			c := current.(*readmodel.CartReadModel)
			c.Items = nil
			c.Subtotal = 0
			return c
		})
	}

	return nil
}

func (p *Projector) handleOrderEvent(event store.Event) error {
	switch event.EventType {
	case order.EventOrderCreated:
		var e order.OrderCreated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}

		items := make([]readmodel.OrderItemReadModel, 0, len(e.Items))
		for _, item := range e.Items {
			items = append(items, readmodel.OrderItemReadModel{
				ProductID: item.ProductID,
				Name:      item.ProductName,
				SKU:       item.SKU,
				ImageURL:  item.ImageURL,
				UnitPrice: item.UnitPrice,
				Quantity:  item.Quantity,
				Size:      item.Size,
				Color:     item.Color,
			})
		}

		p.readStore.Set(readmodel.Orders, e.OrderID, &readmodel.OrderReadModel{
			ID:          e.OrderID,
			OrderNumber: e.OrderNumber,
			UserID:      e.UserID,
			Items:       items,
			ShippingAddress: readmodel.AddressReadModel{
				FullName:   e.ShippingAddress.Recipient,
				Email:      e.ShippingAddress.Email,
				Phone:      e.ShippingAddress.Phone,
				Line1:      e.ShippingAddress.Line1,
				City:       e.ShippingAddress.City,
				PostalCode: e.ShippingAddress.PostalCode,
			},
			PaymentMethod: e.PaymentMethod,
			PaymentStatus: string(order.PaymentPending),
			Status:        string(order.StatusPending),
			Subtotal:      e.Subtotal,
			ShippingCost:  e.ShippingCost,
			Discount:      e.Discount,
			Total:         e.Total,
			StatusHistory: []readmodel.StatusHistoryReadModel{
				{Status: string(order.StatusPending), Note: "order created", At: e.CreatedAt},
			},
			Notes:     e.Notes,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.CreatedAt,
		})

		p.readStore.Set(readmodel.OrderNumbers, e.OrderNumber, &readmodel.OrderNumberRef{
			OrderNumber: e.OrderNumber,
			OrderID:     e.OrderID,
		})

		p.bumpUserStats(e.UserID, 1, e.Total, e.CreatedAt)

	case order.EventOrderStatusChanged:
		var e order.OrderStatusChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Orders, e.OrderID, func(current any) any {
			o := current.(*readmodel.OrderReadModel)
			o.Status = string(e.To)
			if e.To == order.StatusDelivered {
				at := e.ChangedAt
				o.DeliveredAt = &at
			}
			o.StatusHistory = append(o.StatusHistory, readmodel.StatusHistoryReadModel{
				Status: string(e.To),
				Note:   e.Note,
				Actor:  e.Actor,
				At:     e.ChangedAt,
			})
			o.UpdatedAt = e.ChangedAt
			return o
		})

	case order.EventOrderCancelled:
		var e order.OrderCancelled
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		var userID string
		var total int64
		p.readStore.Update(readmodel.Orders, e.OrderID, func(current any) any {
			o := current.(*readmodel.OrderReadModel)
			o.Status = string(order.StatusCancelled)
			if e.Refunded {
				o.PaymentStatus = string(order.PaymentRefunded)
			}
			o.StatusHistory = append(o.StatusHistory, readmodel.StatusHistoryReadModel{
				Status: string(order.StatusCancelled),
				Note:   e.Reason,
				Actor:  e.Actor,
				At:     e.CancelledAt,
			})
			o.PaymentPayload = ""
			o.PaymentExpiresAt = nil
			o.UpdatedAt = e.CancelledAt
			userID = o.UserID
			total = o.Total
			return o
		})
		if userID != "" {
			p.bumpUserStats(userID, -1, -total, e.CancelledAt)
		}

	case order.EventOrderReturned:
		var e order.OrderReturned
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		var userID string
		var total int64
		p.readStore.Update(readmodel.Orders, e.OrderID, func(current any) any {
			o := current.(*readmodel.OrderReadModel)
			o.Status = string(order.StatusReturned)
			o.PaymentStatus = string(order.PaymentRefunded)
			o.StatusHistory = append(o.StatusHistory, readmodel.StatusHistoryReadModel{
				Status: string(order.StatusReturned),
				Note:   e.Reason,
				Actor:  e.Actor,
				At:     e.ReturnedAt,
			})
			o.UpdatedAt = e.ReturnedAt
			userID = o.UserID
			total = o.Total
			return o
		})
		if userID != "" {
			p.bumpUserStats(userID, -1, -total, e.ReturnedAt)
		}

	case order.EventPaymentSessionIssued:
		var e order.PaymentSessionIssued
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Orders, e.OrderID, func(current any) any {
			o := current.(*readmodel.OrderReadModel)
			o.PaymentPayload = e.Payload
			at := e.ExpiresAt
			o.PaymentExpiresAt = &at
			o.UpdatedAt = e.IssuedAt
			return o
		})

	case order.EventPaymentConfirmed:
		var e order.PaymentConfirmed
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Orders, e.OrderID, func(current any) any {
			o := current.(*readmodel.OrderReadModel)
			o.PaymentStatus = string(order.PaymentPaid)
			o.Status = string(order.StatusConfirmed)
			o.TransactionID = e.TransactionID
			at := e.PaidAt
			o.PaidAt = &at
			o.PaymentPayload = ""
			o.PaymentExpiresAt = nil
			o.StatusHistory = append(o.StatusHistory, readmodel.StatusHistoryReadModel{
				Status: string(order.StatusConfirmed),
				Note:   "payment confirmed",
				At:     e.PaidAt,
			})
			o.UpdatedAt = e.PaidAt
			return o
		})

	case order.EventPaymentCancelled:
		var e order.PaymentCancelled
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		var userID string
		var total int64
		p.readStore.Update(readmodel.Orders, e.OrderID, func(current any) any {
			o := current.(*readmodel.OrderReadModel)
			o.PaymentStatus = string(order.PaymentFailed)
			o.Status = string(order.StatusCancelled)
			o.PaymentPayload = ""
			o.PaymentExpiresAt = nil
			o.StatusHistory = append(o.StatusHistory, readmodel.StatusHistoryReadModel{
				Status: string(order.StatusCancelled),
				Note:   e.Reason,
				At:     e.CancelledAt,
			})
			o.UpdatedAt = e.CancelledAt
			userID = o.UserID
			total = o.Total
			return o
		})
		if userID != "" {
			p.bumpUserStats(userID, -1, -total, e.CancelledAt)
		}
	}

	return nil
}

func (p *Projector) handleInventoryEvent(event store.Event) error {
	switch event.EventType {
	case inventory.EventStockAdded:
		var e inventory.StockAdded
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		if _, ok := p.readStore.Get(readmodel.Inventory, e.ProductID); !ok {
			p.readStore.Set(readmodel.Inventory, e.ProductID, &readmodel.InventoryReadModel{
				ProductID: e.ProductID,
				Stock:     e.Quantity,
			})
			return nil
		}
		p.readStore.Update(readmodel.Inventory, e.ProductID, func(current any) any {
			inv := current.(*readmodel.InventoryReadModel)
			inv.Stock += e.Quantity
			return inv
		})

	case inventory.EventStockReserved:
		var e inventory.StockReserved
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Inventory, e.ProductID, func(current any) any {
			inv := current.(*readmodel.InventoryReadModel)
			inv.Stock -= e.Quantity
			inv.SalesCount += e.Quantity
			return inv
		})

	case inventory.EventStockReleased:
		var e inventory.StockReleased
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.Inventory, e.ProductID, func(current any) any {
			inv := current.(*readmodel.InventoryReadModel)
			inv.Stock += e.Quantity
			inv.SalesCount -= e.Quantity
			if inv.SalesCount < 0 {
				inv.SalesCount = 0
			}
			return inv
		})
	}

	return nil
}

func (p *Projector) bumpUserStats(userID string, orders int, spent int64, at time.Time) {
	if _, ok := p.readStore.Get(readmodel.UserStats, userID); !ok {
		stats := &readmodel.UserStatsReadModel{UserID: userID, UpdatedAt: at}
		applyStats(stats, orders, spent)
		p.readStore.Set(readmodel.UserStats, userID, stats)
		return
	}
	p.readStore.Update(readmodel.UserStats, userID, func(current any) any {
		stats := current.(*readmodel.UserStatsReadModel)
		applyStats(stats, orders, spent)
		stats.UpdatedAt = at
		return stats
	})
}

func applyStats(stats *readmodel.UserStatsReadModel, orders int, spent int64) {
	stats.OrderCount += orders
	stats.TotalSpent += spent
	if stats.OrderCount < 0 {
		stats.OrderCount = 0
	}
	if stats.TotalSpent < 0 {
		stats.TotalSpent = 0
	}
}

func sameVariant(item readmodel.CartItemReadModel, productID, size, color string) bool {
	return item.ProductID == productID && item.Size == size && item.Color == color
}

func cartSubtotal(items []readmodel.CartItemReadModel) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}
