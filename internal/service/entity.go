package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/search"
	"github.com/utafrali/catalog/internal/store"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// Repositories of the three collections.
type (
	ProductRepository  = repository.Repository[domain.Product, *domain.Product]
	CustomerRepository = repository.Repository[domain.Customer, *domain.Customer]
	OrderRepository    = repository.Repository[domain.Order, *domain.Order]
)

// EntityService implements the create/update/read/delete and search use cases
// shared by every collection.
type EntityService[T any, P repository.Entity[T]] struct {
	repo     *repository.Repository[T, P]
	resource string
	logger   *slog.Logger
}

// Services of the directly managed collections.
type (
	ProductService  = EntityService[domain.Product, *domain.Product]
	CustomerService = EntityService[domain.Customer, *domain.Customer]
)

// NewEntityService creates a service over repo. resource names the entity in
// errors and logs.
func NewEntityService[T any, P repository.Entity[T]](repo *repository.Repository[T, P], resource string, logger *slog.Logger) *EntityService[T, P] {
	return &EntityService[T, P]{
		repo:     repo,
		resource: resource,
		logger:   logger,
	}
}

// Create stores entity under id. An existing id is a conflict.
func (s *EntityService[T, P]) Create(ctx context.Context, id string, entity *T) (*T, error) {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.AlreadyExists(s.resource, "id", id)
	}

	created, err := s.repo.Upsert(ctx, id, entity, store.OutcomeCreated)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, s.resource+" created", slog.String("id", id))
	return created, nil
}

// Update replaces the entity stored under id. A missing id is not created.
func (s *EntityService[T, P]) Update(ctx context.Context, id string, entity *T) (*T, error) {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NotFound(s.resource, id)
	}

	updated, err := s.repo.Upsert(ctx, id, entity, store.OutcomeUpdated)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, s.resource+" updated", slog.String("id", id))
	return updated, nil
}

// Get returns the entity stored under id.
func (s *EntityService[T, P]) Get(ctx context.Context, id string) (*T, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes the entity stored under id.
func (s *EntityService[T, P]) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, s.resource+" deleted", slog.String("id", id))
	return nil
}

// List returns every entity sorted by sortBy in order ("asc" or "desc").
// Empty values select the collection defaults.
func (s *EntityService[T, P]) List(ctx context.Context, sortBy, order string) ([]T, error) {
	dir, err := search.ParseDirection(order)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx, sortBy, dir, nil)
}

// Search returns the entities matching query.
func (s *EntityService[T, P]) Search(ctx context.Context, query, sortBy, order string) ([]T, error) {
	dir, err := search.ParseDirection(order)
	if err != nil {
		return nil, err
	}
	return s.repo.Search(ctx, query, sortBy, dir, nil)
}
