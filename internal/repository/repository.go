// Package repository maps typed entities onto a document store collection.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/utafrali/catalog/internal/search"
	"github.com/utafrali/catalog/internal/store"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// DefaultMaxResults caps the number of hits a listing or search returns.
const DefaultMaxResults = 100

// Entity is the pointer constraint every stored type satisfies.
type Entity[T any] interface {
	*T
	SetID(id string)
}

// Scope restricts a listing to documents whose keyword Field equals Value.
type Scope struct {
	Field string
	Value string
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	maxResults int
}

// WithMaxResults overrides DefaultMaxResults. Non-positive values are ignored.
func WithMaxResults(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxResults = n
		}
	}
}

// Repository stores entities of type T in one collection. The document id
// assigned by the store is authoritative: it always overrides any id in the
// stored body.
type Repository[T any, P Entity[T]] struct {
	store      store.DocumentStore
	index      *IndexManager
	schema     search.Schema
	resource   string
	maxResults int
}

// New creates a repository for the collection described by schema. resource
// names the entity in error messages.
func New[T any, P Entity[T]](s store.DocumentStore, schema search.Schema, resource string, opts ...Option) *Repository[T, P] {
	o := options{maxResults: DefaultMaxResults}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T, P]{
		store:      s,
		index:      NewIndexManager(s, schema),
		schema:     schema,
		resource:   resource,
		maxResults: o.maxResults,
	}
}

// Schema returns the collection schema.
func (r *Repository[T, P]) Schema() search.Schema {
	return r.schema
}

// EnsureIndex creates the collection index if needed.
func (r *Repository[T, P]) EnsureIndex(ctx context.Context) error {
	return r.index.EnsureIndex(ctx)
}

// Exists reports whether a document is stored under id. A missing document
// is not an error.
func (r *Repository[T, P]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the entity stored under id.
func (r *Repository[T, P]) Get(ctx context.Context, id string) (*T, error) {
	if err := r.index.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	hits, err := r.store.Search(ctx, r.schema.Index, search.Request{
		Query: search.BuildIDQuery(id),
		Size:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", r.resource, id, err)
	}
	if len(hits) == 0 {
		return nil, apperrors.NotFound(r.resource, id)
	}

	return r.decode(hits[0])
}

// Upsert writes entity under id and checks the store reports the expected
// outcome. The returned copy carries id.
func (r *Repository[T, P]) Upsert(ctx context.Context, id string, entity *T, expected store.Outcome) (*T, error) {
	stored, outcome, err := r.write(ctx, id, entity)
	if err != nil {
		return nil, err
	}
	if outcome != expected {
		return nil, apperrors.StoreInconsistency("%s %s: expected %s, store reported %s", r.resource, id, expected, outcome)
	}
	return stored, nil
}

// Replace writes entity under id without an outcome expectation.
func (r *Repository[T, P]) Replace(ctx context.Context, id string, entity *T) (store.Outcome, error) {
	_, outcome, err := r.write(ctx, id, entity)
	return outcome, err
}

// Delete removes the document stored under id. Deleting a missing document
// returns an error matching both apperrors.ErrNotFound and
// apperrors.ErrStoreInconsistency.
func (r *Repository[T, P]) Delete(ctx context.Context, id string) error {
	if err := r.index.EnsureIndex(ctx); err != nil {
		return err
	}

	outcome, err := r.store.DeleteDocument(ctx, r.schema.Index, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", r.resource, id, err)
	}

	switch outcome {
	case store.OutcomeDeleted:
		return nil
	case store.OutcomeNotFound:
		return apperrors.DocumentNotFound(r.resource, id)
	default:
		return apperrors.StoreInconsistency("delete %s %s: store reported %s", r.resource, id, outcome)
	}
}

// ListAll returns every entity of the collection, optionally scoped, in the
// requested order.
func (r *Repository[T, P]) ListAll(ctx context.Context, sortBy string, dir search.Direction, scope *Scope) ([]T, error) {
	q, sort, err := search.BuildListAllQuery(sortBy, dir, r.schema)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, q, sort, scope)
}

// Search runs a free-text search over the collection. Blank text matches
// nothing and does not reach the store.
func (r *Repository[T, P]) Search(ctx context.Context, freeText, sortBy string, dir search.Direction, scope *Scope) ([]T, error) {
	q, sort, err := search.BuildSearchQuery(freeText, sortBy, dir, r.schema)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(freeText) == "" {
		return []T{}, nil
	}
	return r.run(ctx, q, sort, scope)
}

func (r *Repository[T, P]) run(ctx context.Context, q search.Query, sort search.Sort, scope *Scope) ([]T, error) {
	if scope != nil {
		scoped, err := search.BuildScopedQuery(scope.Field, scope.Value, q, r.schema)
		if err != nil {
			return nil, err
		}
		q = scoped
	}

	if err := r.index.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	hits, err := r.store.Search(ctx, r.schema.Index, search.Request{
		Query: q,
		Sort:  []search.Sort{sort},
		Size:  r.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.schema.Index, err)
	}

	out := make([]T, 0, len(hits))
	for _, h := range hits {
		v, err := r.decode(h)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (r *Repository[T, P]) write(ctx context.Context, id string, entity *T) (*T, store.Outcome, error) {
	if err := r.index.EnsureIndex(ctx); err != nil {
		return nil, "", err
	}

	stored := *entity
	P(&stored).SetID(id)

	body, err := json.Marshal(&stored)
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s %s: %w", r.resource, id, err)
	}

	outcome, err := r.store.IndexDocument(ctx, r.schema.Index, id, body)
	if err != nil {
		return nil, "", fmt.Errorf("write %s %s: %w", r.resource, id, err)
	}
	return &stored, outcome, nil
}

func (r *Repository[T, P]) decode(h store.Hit) (*T, error) {
	var v T
	if err := json.Unmarshal(h.Source, &v); err != nil {
		return nil, apperrors.StoreInconsistency("decode %s %s: %v", r.resource, h.ID, err)
	}
	P(&v).SetID(h.ID)
	return &v, nil
}
