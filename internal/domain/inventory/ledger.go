package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/order-engine/internal/domain/aggregate"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/example/order-engine/internal/locking"
	"github.com/sirupsen/logrus"
)

const AggregateType = "Inventory"

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrProductNotStocked = errors.New("product has no stock record")
)

// Inventory holds the stock counters for one product. Stock and SalesCount
// are only ever mutated through Service operations; reserve moves units from
// stock into salesCount, release moves them back.
type Inventory struct {
	ProductID  string `json:"product_id"`
	Stock      int    `json:"stock"`
	SalesCount int    `json:"sales_count"`
	Version    int    `json:"version"`
}

func (i *Inventory) GetID() string    { return i.ProductID }
func (i *Inventory) GetVersion() int  { return i.Version }
func (i *Inventory) SetVersion(v int) { i.Version = v }

// ApplyEvent applies a single event to the inventory state (implements aggregate.Aggregate)
func (i *Inventory) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventStockAdded:
		var data StockAdded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		i.ProductID = data.ProductID
		i.Stock += data.Quantity
	case EventStockReserved:
		var data StockReserved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		i.Stock -= data.Quantity
		i.SalesCount += data.Quantity
	case EventStockReleased:
		var data StockReleased
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		i.Stock += data.Quantity
		i.SalesCount -= data.Quantity
		if i.SalesCount < 0 {
			i.SalesCount = 0
		}
	}
	i.Version = event.Version
	return nil
}

// Guard is an optional external stock guard (Redis) consulted before the
// event append. It gives hot products a cross-instance atomic check.
type Guard interface {
	// Reserve atomically checks-and-decrements; returns ErrInsufficientStock
	// semantics via ok=false.
	Reserve(ctx context.Context, productID string, quantity int) (ok bool, err error)
	// Release restores units. The token scopes idempotency: repeated releases
	// with the same token restore stock only once.
	Release(ctx context.Context, productID, token string, quantity int) error
	// Preload seeds the guard's counter from the ledger.
	Preload(ctx context.Context, productID string, stock int) error
}

// Reservation names one product/quantity pair of a group reservation.
type Reservation struct {
	ProductID string
	Quantity  int
}

// Service is the inventory ledger. All reservations for one product run
// under that product's lock, so each sees the true post-state of all prior
// ones; different products proceed in parallel.
type Service struct {
	eventStore store.EventStoreInterface
	locks      *locking.Keyed
	guard      Guard
	log        *logrus.Entry
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{
		eventStore: es,
		locks:      locking.NewKeyed(),
		log:        logrus.WithField("component", "inventory"),
	}
}

// WithGuard attaches an external stock guard; returns the service for chaining.
func (s *Service) WithGuard(g Guard) *Service {
	s.guard = g
	return s
}

func (s *Service) load(ctx context.Context, productID string) (*Inventory, bool, error) {
	return aggregate.LoadAggregate(ctx, s.eventStore, productID, func() *Inventory {
		return &Inventory{ProductID: productID}
	})
}

// Get returns the current counters for a product.
func (s *Service) Get(ctx context.Context, productID string) (*Inventory, error) {
	inv, found, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrProductNotStocked
	}
	return inv, nil
}

// AddStock increases a product's stock (restock or initial seeding).
func (s *Service) AddStock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	unlock := s.locks.Lock(productID)
	defer unlock()

	inv, _, err := s.load(ctx, productID)
	if err != nil {
		return err
	}

	event := StockAdded{
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, productID, AggregateType, EventStockAdded, event)
	if err != nil {
		return err
	}

	inv.Stock += quantity
	if storedEvent != nil {
		inv.Version = storedEvent.Version
	}

	if s.guard != nil {
		if err := s.guard.Preload(ctx, productID, inv.Stock); err != nil {
			s.log.WithError(err).WithField("product_id", productID).Warn("preload stock guard")
		}
	}

	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, inv, AggregateType); err != nil {
		s.log.WithError(err).WithField("product_id", productID).Warn("create snapshot")
	}

	return nil
}

// Reserve atomically moves quantity units from stock to sales for one
// product. The check and the decrement are indivisible with respect to other
// reservations on the same product: no interleaving can oversell, and stock
// never goes negative.
func (s *Service) Reserve(ctx context.Context, productID, orderID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	unlock := s.locks.Lock(productID)
	defer unlock()

	inv, found, err := s.load(ctx, productID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrProductNotStocked, productID)
	}

	if s.guard != nil {
		ok, err := s.guard.Reserve(ctx, productID, quantity)
		if err != nil {
			return fmt.Errorf("stock guard: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID)
		}
	} else if inv.Stock < quantity {
		return fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, productID, inv.Stock, quantity)
	}

	event := StockReserved{
		ProductID:  productID,
		OrderID:    orderID,
		Quantity:   quantity,
		ReservedAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, productID, AggregateType, EventStockReserved, event)
	if err != nil {
		// The guard already decremented; put the units back so the two
		// counters cannot drift apart.
		if s.guard != nil {
			if gerr := s.guard.Release(ctx, productID, releaseToken(orderID, productID), quantity); gerr != nil {
				s.log.WithError(gerr).WithFields(logrus.Fields{
					"product_id": productID,
					"order_id":   orderID,
				}).Error("guard compensation failed, needs manual reconciliation")
			}
		}
		return err
	}

	inv.Stock -= quantity
	inv.SalesCount += quantity
	if storedEvent != nil {
		inv.Version = storedEvent.Version
	}

	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, inv, AggregateType); err != nil {
		s.log.WithError(err).WithField("product_id", productID).Warn("create snapshot")
	}

	return nil
}

// Release is the inverse of Reserve. Callers must release at most once per
// original reservation; the ledger does not track individual reservations.
func (s *Service) Release(ctx context.Context, productID, orderID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	unlock := s.locks.Lock(productID)
	defer unlock()

	inv, found, err := s.load(ctx, productID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrProductNotStocked, productID)
	}

	event := StockReleased{
		ProductID:  productID,
		OrderID:    orderID,
		Quantity:   quantity,
		ReleasedAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, productID, AggregateType, EventStockReleased, event)
	if err != nil {
		return err
	}

	if s.guard != nil {
		if gerr := s.guard.Release(ctx, productID, releaseToken(orderID, productID), quantity); gerr != nil {
			s.log.WithError(gerr).WithFields(logrus.Fields{
				"product_id": productID,
				"order_id":   orderID,
			}).Error("guard release failed, needs manual reconciliation")
		}
	}

	inv.Stock += quantity
	inv.SalesCount -= quantity
	if storedEvent != nil {
		inv.Version = storedEvent.Version
	}

	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, inv, AggregateType); err != nil {
		s.log.WithError(err).WithField("product_id", productID).Warn("create snapshot")
	}

	return nil
}

// ReserveAll reserves every item of an order as one failure-atomic group.
// On the first failure it releases the already-reserved items in reverse
// order and returns the original error; the caller never sees a partial
// reservation. Compensation failures are logged for reconciliation, not
// surfaced.
func (s *Service) ReserveAll(ctx context.Context, orderID string, items []Reservation) error {
	reserved := make([]Reservation, 0, len(items))

	for _, item := range items {
		if err := s.Reserve(ctx, item.ProductID, orderID, item.Quantity); err != nil {
			for j := len(reserved) - 1; j >= 0; j-- {
				r := reserved[j]
				if rerr := s.Release(ctx, r.ProductID, orderID, r.Quantity); rerr != nil {
					s.log.WithError(rerr).WithFields(logrus.Fields{
						"product_id": r.ProductID,
						"order_id":   orderID,
						"quantity":   r.Quantity,
					}).Error("rollback release failed, needs manual reconciliation")
				}
			}
			return err
		}
		reserved = append(reserved, item)
	}

	return nil
}

// ReleaseAll restores stock for every item of an order (cancel/return path).
func (s *Service) ReleaseAll(ctx context.Context, orderID string, items []Reservation) error {
	var firstErr error
	for _, item := range items {
		if err := s.Release(ctx, item.ProductID, orderID, item.Quantity); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"product_id": item.ProductID,
				"order_id":   orderID,
			}).Error("release failed, needs manual reconciliation")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func releaseToken(orderID, productID string) string {
	return orderID + ":" + productID
}
