package notification

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/email"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/readmodel"
)

// Handler sends customer emails in response to order events. It reads the
// contact address from the order itself; there is no user directory here.
type Handler struct {
	emailService *email.Service
	readStore    store.ReadStoreInterface
	log          *logrus.Logger
}

func NewHandler(emailSvc *email.Service, readStore store.ReadStoreInterface, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		emailService: emailSvc,
		readStore:    readStore,
		log:          log,
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.log.WithError(err).Warn("notifier: failed to unmarshal event")
		return err
	}

	switch event.EventType {
	case order.EventOrderCreated:
		return h.handleOrderCreated(event)
	case order.EventPaymentConfirmed:
		return h.handlePaymentConfirmed(event)
	case order.EventOrderStatusChanged:
		return h.handleStatusChanged(event)
	}
	return nil
}

func (h *Handler) handleOrderCreated(event store.Event) error {
	var e order.OrderCreated
	if err := json.Unmarshal(event.Data, &e); err != nil {
		h.log.WithError(err).Warn("notifier: bad OrderCreated payload")
		return err
	}
	if e.ShippingAddress.Email == "" {
		h.log.WithField("order_id", e.OrderID).Debug("notifier: order has no contact email, skipping")
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	if err := h.emailService.SendOrderConfirmation(e.ShippingAddress.Email, e.OrderNumber, e.Total, items); err != nil {
		h.log.WithError(err).WithField("order_id", e.OrderID).Error("notifier: failed to send order confirmation")
		return err
	}
	h.log.WithFields(logrus.Fields{
		"order_id":     e.OrderID,
		"order_number": e.OrderNumber,
	}).Info("notifier: order confirmation sent")
	return nil
}

func (h *Handler) handlePaymentConfirmed(event store.Event) error {
	var e order.PaymentConfirmed
	if err := json.Unmarshal(event.Data, &e); err != nil {
		h.log.WithError(err).Warn("notifier: bad PaymentConfirmed payload")
		return err
	}

	o, ok := h.lookupOrder(e.OrderID)
	if !ok || o.ShippingAddress.Email == "" {
		return nil
	}

	if err := h.emailService.SendPaymentReceipt(o.ShippingAddress.Email, o.OrderNumber, e.TransactionID, e.Amount); err != nil {
		h.log.WithError(err).WithField("order_id", e.OrderID).Error("notifier: failed to send payment receipt")
		return err
	}
	h.log.WithField("order_id", e.OrderID).Info("notifier: payment receipt sent")
	return nil
}

func (h *Handler) handleStatusChanged(event store.Event) error {
	var e order.OrderStatusChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		h.log.WithError(err).Warn("notifier: bad OrderStatusChanged payload")
		return err
	}
	if e.To != order.StatusShipped {
		return nil
	}

	o, ok := h.lookupOrder(e.OrderID)
	if !ok || o.ShippingAddress.Email == "" {
		return nil
	}

	if err := h.emailService.SendShippingNotice(o.ShippingAddress.Email, o.OrderNumber); err != nil {
		h.log.WithError(err).WithField("order_id", e.OrderID).Error("notifier: failed to send shipping notice")
		return err
	}
	h.log.WithField("order_id", e.OrderID).Info("notifier: shipping notice sent")
	return nil
}

func (h *Handler) lookupOrder(orderID string) (*readmodel.OrderReadModel, bool) {
	data, ok := h.readStore.Get(readmodel.Orders, orderID)
	if !ok {
		h.log.WithField("order_id", orderID).Warn("notifier: order read model not found")
		return nil, false
	}
	o, ok := data.(*readmodel.OrderReadModel)
	if !ok {
		return nil, false
	}
	return o, true
}
