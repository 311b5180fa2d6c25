// Package command hosts the write-side use cases. Handlers coordinate the
// domain services; cross-aggregate consistency (stock vs orders) lives
// here, with compensation when a later step fails.
package command

import (
	"context"
	"time"

	"github.com/example/order-engine/internal/domain/cart"
	"github.com/example/order-engine/internal/domain/inventory"
	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/domain/payment"
	"github.com/example/order-engine/internal/domain/product"
	"github.com/example/order-engine/internal/metrics"
	"github.com/example/order-engine/internal/query"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	productSvc   *product.Service
	cartSvc      *cart.Service
	orderSvc     *order.Service
	inventorySvc *inventory.Service
	payments     *payment.Manager
	queries      *query.Handler
	metrics      *metrics.Metrics
	log          *logrus.Entry
}

func NewHandler(
	productSvc *product.Service,
	cartSvc *cart.Service,
	orderSvc *order.Service,
	inventorySvc *inventory.Service,
	payments *payment.Manager,
	queries *query.Handler,
	m *metrics.Metrics,
) *Handler {
	if m == nil {
		m = metrics.Noop()
	}
	return &Handler{
		productSvc:   productSvc,
		cartSvc:      cartSvc,
		orderSvc:     orderSvc,
		inventorySvc: inventorySvc,
		payments:     payments,
		queries:      queries,
		metrics:      m,
		log:          logrus.WithField("component", "command"),
	}
}

// CreateProduct creates a product and seeds its stock. Read models catch up
// asynchronously through the projector.
func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	p, err := h.productSvc.Create(ctx, cmd.Name, cmd.SKU, cmd.Description, cmd.ImageURL, cmd.Price)
	if err != nil {
		return nil, err
	}

	if cmd.Stock > 0 {
		if err := h.inventorySvc.AddStock(ctx, p.ID, cmd.Stock); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (h *Handler) UpdateProduct(ctx context.Context, cmd UpdateProduct) error {
	return h.productSvc.Update(ctx, cmd.ProductID, cmd.Name, cmd.Description, cmd.ImageURL, cmd.Price)
}

func (h *Handler) DiscontinueProduct(ctx context.Context, cmd DiscontinueProduct) error {
	return h.productSvc.Discontinue(ctx, cmd.ProductID)
}

func (h *Handler) Restock(ctx context.Context, cmd Restock) error {
	return h.inventorySvc.AddStock(ctx, cmd.ProductID, cmd.Quantity)
}

// AddToCart snapshots the product's current price into the cart line. Stock
// is checked softly here; the hard reservation happens at checkout.
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) error {
	p, ok := h.queries.GetProduct(cmd.ProductID)
	if !ok {
		return product.ErrProductNotFound
	}
	if p.Status == string(product.StatusDiscontinued) {
		return product.ErrAlreadyDiscontinued
	}

	if inv, ok := h.queries.GetInventory(cmd.ProductID); ok && inv.Stock < cmd.Quantity {
		return inventory.ErrInsufficientStock
	}

	return h.cartSvc.AddItem(ctx, cmd.UserID, cmd.ProductID, cmd.Size, cmd.Color, cmd.Quantity, p.Price)
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) error {
	return h.cartSvc.RemoveItem(ctx, cmd.UserID, cmd.ProductID, cmd.Size, cmd.Color)
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) error {
	return h.cartSvc.Clear(ctx, cmd.UserID, "user cleared")
}

// MergeGuestCart folds guest lines into the user's cart. Lines that fail
// (discontinued product, quantity cap) are skipped and logged rather than
// failing the whole merge.
func (h *Handler) MergeGuestCart(ctx context.Context, cmd MergeGuestCart) error {
	for _, item := range cmd.Items {
		err := h.AddToCart(ctx, AddToCart{
			UserID:    cmd.UserID,
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
		})
		if err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"user_id":    cmd.UserID,
				"product_id": item.ProductID,
			}).Warn("skipping guest cart line during merge")
		}
	}
	return nil
}

// PlaceOrder turns the user's cart into an order. Stock for every line is
// reserved as one atomic group before the order is created; if order
// creation then fails the reservation is rolled back. The cart is cleared
// only after the order exists.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	c := h.queries.GetCart(cmd.UserID)
	if len(c.Items) == 0 {
		return nil, order.ErrEmptyOrder
	}

	items := make([]order.LineItem, 0, len(c.Items))
	reservations := make([]inventory.Reservation, 0, len(c.Items))
	for _, line := range c.Items {
		p, ok := h.queries.GetProduct(line.ProductID)
		if !ok {
			return nil, product.ErrProductNotFound
		}
		if p.Status == string(product.StatusDiscontinued) {
			return nil, product.ErrAlreadyDiscontinued
		}
		items = append(items, order.LineItem{
			ProductID:   line.ProductID,
			ProductName: p.Name,
			SKU:         p.SKU,
			ImageURL:    p.ImageURL,
			Size:        line.Size,
			Color:       line.Color,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
		})
		reservations = append(reservations, inventory.Reservation{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	// Group ID ties the reservation events together before the order ID
	// exists; the release path uses order items, not this ID, to find
	// quantities.
	groupID := "checkout-" + cmd.UserID + "-" + time.Now().Format("20060102150405.000")
	if err := h.inventorySvc.ReserveAll(ctx, groupID, reservations); err != nil {
		h.metrics.InsufficientStock.Add(ctx, 1)
		return nil, err
	}

	o, err := h.orderSvc.Create(ctx, order.CreateParams{
		UserID: cmd.UserID,
		Items:  items,
		ShippingAddress: order.Address{
			Recipient:  cmd.Recipient,
			Email:      cmd.Email,
			Phone:      cmd.Phone,
			PostalCode: cmd.PostalCode,
			Line1:      cmd.Line1,
			Line2:      cmd.Line2,
			City:       cmd.City,
			Country:    cmd.Country,
		},
		PaymentMethod: cmd.PaymentMethod,
		CouponCode:    cmd.CouponCode,
		Discount:      cmd.Discount,
		Notes:         cmd.Notes,
	})
	if err != nil {
		if rerr := h.inventorySvc.ReleaseAll(ctx, groupID, reservations); rerr != nil {
			h.log.WithError(rerr).WithField("user_id", cmd.UserID).Error("release after failed order creation")
		}
		return nil, err
	}

	if err := h.cartSvc.Clear(ctx, cmd.UserID, "checkout"); err != nil {
		// The order stands; an uncleaned cart is an annoyance, not a fault.
		h.log.WithError(err).WithField("user_id", cmd.UserID).Warn("clear cart after checkout")
	}

	h.metrics.OrdersPlaced.Add(ctx, 1)
	h.metrics.StockReservations.Add(ctx, int64(len(reservations)))
	h.metrics.OrderValue.Record(ctx, o.Total)

	return o, nil
}

// TransitionOrder advances fulfillment (admin only at the API layer).
func (h *Handler) TransitionOrder(ctx context.Context, cmd TransitionOrder) (*order.Order, error) {
	return h.orderSvc.Transition(ctx, cmd.OrderID, order.Status(cmd.Target), cmd.Note, cmd.Actor)
}

// CancelOrder cancels the order first, then restores its stock. The cancel
// event is the commit point; a failed release is logged for reconciliation,
// never rolled back into an un-cancel.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	o, err := h.orderSvc.Cancel(ctx, cmd.OrderID, cmd.Reason, cmd.Actor)
	if err != nil {
		return nil, err
	}

	h.releaseOrderStock(ctx, o)
	h.metrics.OrdersCancelled.Add(ctx, 1)
	return o, nil
}

// ReturnOrder accepts a return and restocks the items.
func (h *Handler) ReturnOrder(ctx context.Context, cmd ReturnOrder) (*order.Order, error) {
	o, err := h.orderSvc.Return(ctx, cmd.OrderID, cmd.Reason, cmd.Actor)
	if err != nil {
		return nil, err
	}

	h.releaseOrderStock(ctx, o)
	h.metrics.OrdersReturned.Add(ctx, 1)
	return o, nil
}

// IssuePaymentSession opens a QR payment window on a pending order.
func (h *Handler) IssuePaymentSession(ctx context.Context, cmd IssuePaymentSession) (*order.Order, error) {
	return h.payments.Issue(ctx, cmd.OrderID)
}

// ConfirmPayment verifies the settlement and confirms the order.
func (h *Handler) ConfirmPayment(ctx context.Context, cmd ConfirmPayment) (*order.Order, error) {
	o, err := h.payments.Confirm(ctx, cmd.OrderID, cmd.TransactionID)
	if err != nil {
		return nil, err
	}
	h.metrics.PaymentsConfirmed.Add(ctx, 1)
	return o, nil
}

// AbortPayment cancels the session, the order, and restores stock.
func (h *Handler) AbortPayment(ctx context.Context, cmd AbortPayment) (*order.Order, error) {
	o, err := h.payments.Abort(ctx, cmd.OrderID, cmd.Reason)
	if err != nil {
		return nil, err
	}

	h.releaseOrderStock(ctx, o)
	h.metrics.OrdersCancelled.Add(ctx, 1)
	return o, nil
}

// ReapExpiredPayments cancels every pending order whose payment session has
// lapsed and restores its stock. Returns the number of orders expired.
func (h *Handler) ReapExpiredPayments(ctx context.Context) (int, error) {
	candidates := h.queries.ListOrdersWithExpiredPayment(time.Now())

	var reaped int
	for _, candidate := range candidates {
		// The aggregate is the authority; the read model only nominates.
		expired, err := h.payments.ExpireIfDue(ctx, candidate.ID)
		if err != nil {
			h.log.WithError(err).WithField("order_id", candidate.ID).Error("expire payment session")
			continue
		}
		if !expired {
			continue
		}

		o, err := h.orderSvc.Get(ctx, candidate.ID)
		if err != nil {
			h.log.WithError(err).WithField("order_id", candidate.ID).Error("load order after expiry")
			continue
		}
		h.releaseOrderStock(ctx, o)
		h.metrics.PaymentsExpired.Add(ctx, 1)
		reaped++
	}

	return reaped, nil
}

func (h *Handler) releaseOrderStock(ctx context.Context, o *order.Order) {
	items := make([]inventory.Reservation, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, inventory.Reservation{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if err := h.inventorySvc.ReleaseAll(ctx, o.ID, items); err != nil {
		h.log.WithError(err).WithField("order_id", o.ID).Error("release order stock")
	}
}
