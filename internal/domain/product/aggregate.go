package product

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/order-engine/internal/domain/aggregate"
	"github.com/example/order-engine/internal/infrastructure/store"
	"github.com/google/uuid"
)

const AggregateType = "Product"

type Status string

const (
	StatusActive       Status = "active"
	StatusDiscontinued Status = "discontinued"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrInvalidName         = errors.New("name is required")
	ErrInvalidSKU          = errors.New("sku is required")
	ErrAlreadyDiscontinued = errors.New("product is already discontinued")
)

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	Price       int64     `json:"price"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

func (p *Product) GetID() string    { return p.ID }
func (p *Product) GetVersion() int  { return p.Version }
func (p *Product) SetVersion(v int) { p.Version = v }

// ApplyEvent applies a single event to the product state (implements aggregate.Aggregate)
func (p *Product) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventProductCreated:
		var data ProductCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.ID = data.ProductID
		p.Name = data.Name
		p.SKU = data.SKU
		p.Description = data.Description
		p.ImageURL = data.ImageURL
		p.Price = data.Price
		p.Status = StatusActive
		p.CreatedAt = data.CreatedAt
		p.UpdatedAt = data.CreatedAt
	case EventProductUpdated:
		var data ProductUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.Name = data.Name
		p.Description = data.Description
		p.ImageURL = data.ImageURL
		p.Price = data.Price
		p.UpdatedAt = data.UpdatedAt
	case EventProductDiscontinued:
		var data ProductDiscontinued
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.Status = StatusDiscontinued
		p.UpdatedAt = data.DiscontinuedAt
	}
	p.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) load(ctx context.Context, productID string) (*Product, error) {
	p, found, err := aggregate.LoadAggregate(ctx, s.eventStore, productID, func() *Product {
		return &Product{ID: productID}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// Get returns the current product state.
func (s *Service) Get(ctx context.Context, productID string) (*Product, error) {
	return s.load(ctx, productID)
}

func (s *Service) Create(ctx context.Context, name, sku, description, imageURL string, price int64) (*Product, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	if price <= 0 {
		return nil, ErrInvalidPrice
	}

	productID := uuid.New().String()
	event := ProductCreated{
		ProductID:   productID,
		Name:        name,
		SKU:         sku,
		Description: description,
		ImageURL:    imageURL,
		Price:       price,
		CreatedAt:   time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductCreated, event)
	if err != nil {
		return nil, err
	}

	p := &Product{ID: productID}
	if err := p.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, productID, name, description, imageURL string, price int64) error {
	if name == "" {
		return ErrInvalidName
	}
	if price <= 0 {
		return ErrInvalidPrice
	}

	if _, err := s.load(ctx, productID); err != nil {
		return err
	}

	event := ProductUpdated{
		ProductID:   productID,
		Name:        name,
		Description: description,
		ImageURL:    imageURL,
		Price:       price,
		UpdatedAt:   time.Now(),
	}

	_, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductUpdated, event)
	return err
}

func (s *Service) Discontinue(ctx context.Context, productID string) error {
	p, err := s.load(ctx, productID)
	if err != nil {
		return err
	}
	if p.Status == StatusDiscontinued {
		return ErrAlreadyDiscontinued
	}

	event := ProductDiscontinued{
		ProductID:      productID,
		DiscontinuedAt: time.Now(),
	}

	_, err = s.eventStore.Append(ctx, productID, AggregateType, EventProductDiscontinued, event)
	return err
}
