// Package elasticsearch implements store.DocumentStore on top of the official
// Elasticsearch client.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/catalog/internal/search"
	"github.com/utafrali/catalog/internal/store"
	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/httpclient"
)

var _ store.DocumentStore = (*Store)(nil)

// Config holds the connection settings.
type Config struct {
	URL      string
	Username string
	Password string
}

// Store is an Elasticsearch-backed document store.
type Store struct {
	client *elasticsearch.Client
	logger *slog.Logger
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// esWriteResponse is the body of index and delete responses.
type esWriteResponse struct {
	ID     string `json:"_id"`
	Result string `json:"result"`
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// New creates a store talking to cfg.URL through a circuit breaker. No
// request is made until the first call.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	transport := httpclient.NewCircuitBreakerTransport(
		httpclient.NewTransport(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("elasticsearch"),
		logger,
	)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an already configured client.
func NewWithClient(client *elasticsearch.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("elasticsearch ping: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return apperrors.StoreUnavailable(fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status()))
	}
	return nil
}

// IndexExists reports whether the index exists.
func (s *Store) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := s.client.Indices.Exists(
		[]string{index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, apperrors.StoreUnavailable(fmt.Errorf("check index exists: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, responseError("check index exists", res)
	}
}

// CreateIndex creates the index with the schema mapping. A concurrent
// creation by another process is treated as success.
func (s *Store) CreateIndex(ctx context.Context, schema search.Schema) error {
	mapping, err := buildIndexMapping(schema)
	if err != nil {
		return fmt.Errorf("create index: marshal mapping: %w", err)
	}

	res, err := s.client.Indices.Create(
		schema.Index,
		s.client.Indices.Create.WithBody(bytes.NewReader(mapping)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("create index: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil &&
			errResp.Error.Type == "resource_already_exists_exception" {
			s.logger.InfoContext(ctx, "elasticsearch index already exists", "index", schema.Index)
			return nil
		}
		return statusError("create index", res.StatusCode, errResp)
	}

	s.logger.InfoContext(ctx, "elasticsearch index created", "index", schema.Index)
	return nil
}

// IndexDocument writes body under id and refreshes the index so the write is
// visible to the next search.
func (s *Store) IndexDocument(ctx context.Context, index, id string, body []byte) (store.Outcome, error) {
	res, err := s.client.Index(
		index,
		bytes.NewReader(body),
		s.client.Index.WithDocumentID(id),
		s.client.Index.WithRefresh("true"),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return "", apperrors.StoreUnavailable(fmt.Errorf("elasticsearch index: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return "", responseError("elasticsearch index", res)
	}

	var wr esWriteResponse
	if err := json.NewDecoder(res.Body).Decode(&wr); err != nil {
		return "", apperrors.StoreInconsistency("elasticsearch index: decode response: %v", err)
	}

	s.logger.DebugContext(ctx, "indexed document", "index", index, "id", id, "result", wr.Result)

	return store.Outcome(wr.Result), nil
}

// DeleteDocument removes the document stored under id. A missing document
// is reported as OutcomeNotFound, not as an error.
func (s *Store) DeleteDocument(ctx context.Context, index, id string) (store.Outcome, error) {
	res, err := s.client.Delete(
		index,
		id,
		s.client.Delete.WithRefresh("true"),
		s.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return "", apperrors.StoreUnavailable(fmt.Errorf("elasticsearch delete: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		// A 404 carries either a write response with result "not_found" or an
		// error body when the index itself is missing.
		var raw json.RawMessage
		if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
			return "", apperrors.StoreInconsistency("elasticsearch delete: decode response: %v", err)
		}
		var wr esWriteResponse
		if json.Unmarshal(raw, &wr) == nil && wr.Result == string(store.OutcomeNotFound) {
			return store.OutcomeNotFound, nil
		}
		var errResp esErrorResponse
		_ = json.Unmarshal(raw, &errResp)
		return "", statusError("elasticsearch delete", res.StatusCode, errResp)
	}

	if res.IsError() {
		return "", responseError("elasticsearch delete", res)
	}

	var wr esWriteResponse
	if err := json.NewDecoder(res.Body).Decode(&wr); err != nil {
		return "", apperrors.StoreInconsistency("elasticsearch delete: decode response: %v", err)
	}

	s.logger.DebugContext(ctx, "deleted document", "index", index, "id", id, "result", wr.Result)
	return store.Outcome(wr.Result), nil
}

// Search executes req against the index and returns the hits in ranking
// order.
func (s *Store) Search(ctx context.Context, index string, req search.Request) ([]store.Hit, error) {
	body, err := buildSearchBody(req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(data)),
		s.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("elasticsearch search: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("elasticsearch search", res)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, apperrors.StoreInconsistency("elasticsearch search: decode response: %v", err)
	}

	hits := make([]store.Hit, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		hits = append(hits, store.Hit{ID: h.ID, Source: h.Source})
	}
	return hits, nil
}

// Close releases idle connections.
func (s *Store) Close() error {
	if t, ok := s.client.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// responseError decodes an error response body.
func responseError(op string, res *esapi.Response) error {
	var errResp esErrorResponse
	_ = json.NewDecoder(res.Body).Decode(&errResp)
	return statusError(op, res.StatusCode, errResp)
}

// statusError classifies a failed response: 5xx means the cluster is not
// serving, anything else is an answer the caller did not expect.
func statusError(op string, status int, errResp esErrorResponse) error {
	if status >= http.StatusInternalServerError {
		return apperrors.StoreUnavailable(fmt.Errorf("%s: status %d: %s: %s", op, status, errResp.Error.Type, errResp.Error.Reason))
	}
	return apperrors.StoreInconsistency("%s: status %d: %s: %s", op, status, errResp.Error.Type, errResp.Error.Reason)
}
