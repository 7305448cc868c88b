package service

import (
	"context"
	"fmt"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/search"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// OrderService exposes order reads and delegates placement to the
// Coordinator. Orders are never written outside a placement.
type OrderService struct {
	repo        *OrderRepository
	coordinator *Coordinator
}

// NewOrderService creates a new order service.
func NewOrderService(repo *OrderRepository, coordinator *Coordinator) *OrderService {
	return &OrderService{repo: repo, coordinator: coordinator}
}

// Place records a new order. See Coordinator.Place.
func (s *OrderService) Place(ctx context.Context, id string, input PlaceOrderInput) (*domain.Order, error) {
	return s.coordinator.Place(ctx, id, input)
}

// Get returns the order stored under id.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns every order.
func (s *OrderService) List(ctx context.Context, sortBy, order string) ([]domain.Order, error) {
	dir, err := search.ParseDirection(order)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx, sortBy, dir, nil)
}

// Search returns the orders matching query.
func (s *OrderService) Search(ctx context.Context, query, sortBy, order string) ([]domain.Order, error) {
	dir, err := search.ParseDirection(order)
	if err != nil {
		return nil, err
	}
	return s.repo.Search(ctx, query, sortBy, dir, nil)
}

// ListScoped returns the orders of one product or customer. variant is
// domain.OrderScopeProduct or domain.OrderScopeCustomer.
func (s *OrderService) ListScoped(ctx context.Context, variant, id, sortBy, order string) ([]domain.Order, error) {
	scope, err := orderScope(variant, id)
	if err != nil {
		return nil, err
	}
	dir, err := search.ParseDirection(order)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx, sortBy, dir, scope)
}

// SearchScoped searches the orders of one product or customer.
func (s *OrderService) SearchScoped(ctx context.Context, variant, id, query, sortBy, order string) ([]domain.Order, error) {
	scope, err := orderScope(variant, id)
	if err != nil {
		return nil, err
	}
	dir, err := search.ParseDirection(order)
	if err != nil {
		return nil, err
	}
	return s.repo.Search(ctx, query, sortBy, dir, scope)
}

func orderScope(variant, id string) (*repository.Scope, error) {
	if !domain.IsValidOrderScope(variant) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("scope must be one of: %s, %s", domain.OrderScopeProduct, domain.OrderScopeCustomer))
	}
	if id == "" {
		return nil, apperrors.InvalidInput(variant + " is required")
	}
	return &repository.Scope{Field: variant, Value: id}, nil
}
