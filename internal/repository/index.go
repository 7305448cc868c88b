package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/utafrali/catalog/internal/search"
	"github.com/utafrali/catalog/internal/store"
)

// IndexManager creates a collection's index on first use. Once an ensure has
// succeeded the result is remembered for the lifetime of the process, so at
// most one creation round-trip is made per collection.
type IndexManager struct {
	store  store.DocumentStore
	schema search.Schema

	mu    sync.Mutex
	ready atomic.Bool
}

// NewIndexManager creates a manager for schema.
func NewIndexManager(s store.DocumentStore, schema search.Schema) *IndexManager {
	return &IndexManager{store: s, schema: schema}
}

// Schema returns the managed schema.
func (m *IndexManager) Schema() search.Schema {
	return m.schema
}

// EnsureIndex makes sure the index exists, creating it with the schema
// mapping when absent. It is safe to call before every operation.
func (m *IndexManager) EnsureIndex(ctx context.Context) error {
	if m.ready.Load() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready.Load() {
		return nil
	}

	exists, err := m.store.IndexExists(ctx, m.schema.Index)
	if err != nil {
		return fmt.Errorf("ensure index %s: %w", m.schema.Index, err)
	}
	if !exists {
		if err := m.store.CreateIndex(ctx, m.schema); err != nil {
			return fmt.Errorf("ensure index %s: %w", m.schema.Index, err)
		}
	}

	m.ready.Store(true)
	return nil
}
