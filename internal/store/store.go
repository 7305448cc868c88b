// Package store defines the document store capability set the repositories
// are written against. Backends live in sub-packages.
package store

import (
	"context"
	"encoding/json"

	"github.com/utafrali/catalog/internal/search"
)

// Outcome reports what a write did to the addressed document.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeUpdated  Outcome = "updated"
	OutcomeDeleted  Outcome = "deleted"
	OutcomeNotFound Outcome = "not_found"
)

// Hit is one search result: the store identifier plus the stored JSON body.
type Hit struct {
	ID     string
	Source json.RawMessage
}

// DocumentStore is a schema-aware search backend. All calls are remote (or
// behave as if they were): they honor ctx and report transport failures as
// apperrors.ErrStoreUnavailable.
type DocumentStore interface {
	// IndexExists reports whether the index has been created.
	IndexExists(ctx context.Context, index string) (bool, error)
	// CreateIndex creates the index with the schema's field mapping. Creating
	// an index that already exists is not an error.
	CreateIndex(ctx context.Context, schema search.Schema) error
	// IndexDocument writes body under id, replacing any previous document.
	// The write is visible to subsequent searches when it returns.
	IndexDocument(ctx context.Context, index, id string, body []byte) (Outcome, error)
	// DeleteDocument removes the document stored under id.
	DeleteDocument(ctx context.Context, index, id string) (Outcome, error)
	// Search runs req against the index and returns at most req.Size hits.
	Search(ctx context.Context, index string, req search.Request) ([]Hit, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
