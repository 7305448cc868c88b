package elasticsearch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/search"
	"github.com/utafrali/catalog/internal/store"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeCluster answers each "METHOD /path" with a canned status and body.
type fakeCluster struct {
	mu        sync.Mutex
	responses map[string]cannedResponse
	requests  []recordedRequest
}

type cannedResponse struct {
	status int
	body   string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	resp, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"unexpected","reason":"no canned response"},"status":404}`))
		return
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (f *fakeCluster) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestStore(t *testing.T, responses map[string]cannedResponse) (*Store, *fakeCluster) {
	t.Helper()

	fake := &fakeCluster{responses: responses}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{srv.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)

	return NewWithClient(client, testLogger()), fake
}

func TestStore_IndexExists(t *testing.T) {
	s, _ := newTestStore(t, map[string]cannedResponse{
		"HEAD /products": {status: http.StatusOK},
	})

	ok, err := s.IndexExists(context.Background(), "products")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IndexExists(context.Background(), "customers")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CreateIndex(t *testing.T) {
	s, fake := newTestStore(t, map[string]cannedResponse{
		"PUT /products": {status: http.StatusOK, body: `{"acknowledged":true}`},
	})

	require.NoError(t, s.CreateIndex(context.Background(), productSchema))

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Contains(t, req.Body, `"keyword":{"ignore_above":256,"type":"keyword"}`)
	assert.Contains(t, req.Body, `"type":"double"`)
}

func TestStore_CreateIndex_AlreadyExists(t *testing.T) {
	s, _ := newTestStore(t, map[string]cannedResponse{
		"PUT /products": {status: http.StatusBadRequest, body: `{"error":{"type":"resource_already_exists_exception","reason":"index [products] already exists"},"status":400}`},
	})

	assert.NoError(t, s.CreateIndex(context.Background(), productSchema))
}

func TestStore_CreateIndex_Rejected(t *testing.T) {
	s, _ := newTestStore(t, map[string]cannedResponse{
		"PUT /products": {status: http.StatusBadRequest, body: `{"error":{"type":"mapper_parsing_exception","reason":"bad"},"status":400}`},
	})

	err := s.CreateIndex(context.Background(), productSchema)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreInconsistency))
}

func TestStore_IndexDocument(t *testing.T) {
	s, fake := newTestStore(t, map[string]cannedResponse{
		"PUT /products/_doc/p1": {status: http.StatusCreated, body: `{"_id":"p1","result":"created"}`},
		"PUT /products/_doc/p2": {status: http.StatusOK, body: `{"_id":"p2","result":"updated"}`},
	})
	ctx := context.Background()

	out, err := s.IndexDocument(ctx, "products", "p1", []byte(`{"name":"Widget"}`))
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeCreated, out)

	req := fake.last()
	assert.Equal(t, `{"name":"Widget"}`, req.Body)
	assert.Contains(t, req.Query, "refresh=true")

	out, err = s.IndexDocument(ctx, "products", "p2", []byte(`{"name":"Gadget"}`))
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeUpdated, out)
}

func TestStore_DeleteDocument(t *testing.T) {
	s, _ := newTestStore(t, map[string]cannedResponse{
		"DELETE /products/_doc/p1": {status: http.StatusOK, body: `{"_id":"p1","result":"deleted"}`},
		"DELETE /products/_doc/p2": {status: http.StatusNotFound, body: `{"_id":"p2","result":"not_found"}`},
		"DELETE /missing/_doc/p1":  {status: http.StatusNotFound, body: `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`},
	})
	ctx := context.Background()

	out, err := s.DeleteDocument(ctx, "products", "p1")
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeDeleted, out)

	out, err = s.DeleteDocument(ctx, "products", "p2")
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeNotFound, out)

	_, err = s.DeleteDocument(ctx, "missing", "p1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreInconsistency))
}

func TestStore_Search(t *testing.T) {
	s, fake := newTestStore(t, map[string]cannedResponse{
		"POST /products/_search": {status: http.StatusOK, body: `{"hits":{"hits":[
			{"_id":"p1","_source":{"id":"stale","name":"Widget","price":10,"stock":5}},
			{"_id":"p2","_source":{"name":"Widgetry","price":7,"stock":0}}
		]}}`},
		"GET /products/_search": {status: http.StatusOK, body: `{"hits":{"hits":[
			{"_id":"p1","_source":{"id":"stale","name":"Widget","price":10,"stock":5}},
			{"_id":"p2","_source":{"name":"Widgetry","price":7,"stock":0}}
		]}}`},
	})

	q, sort, err := search.BuildSearchQuery("wid", "", "", productSchema)
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), "products", search.Request{Query: q, Sort: []search.Sort{sort}, Size: 100})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "p1", hits[0].ID)
	assert.JSONEq(t, `{"id":"stale","name":"Widget","price":10,"stock":5}`, string(hits[0].Source))
	assert.Equal(t, "p2", hits[1].ID)

	assert.Contains(t, fake.last().Body, `"match_phrase_prefix"`)
	assert.Contains(t, fake.last().Body, `"name.keyword"`)
}

func TestStore_ServerErrorIsUnavailable(t *testing.T) {
	s, _ := newTestStore(t, map[string]cannedResponse{
		"POST /products/_search": {status: http.StatusInternalServerError, body: `{"error":{"type":"search_phase_execution_exception","reason":"all shards failed"},"status":500}`},
		"GET /products/_search":  {status: http.StatusInternalServerError, body: `{"error":{"type":"search_phase_execution_exception","reason":"all shards failed"},"status":500}`},
	})

	_, err := s.Search(context.Background(), "products", search.Request{Query: search.MatchAll{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
}

func TestStore_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := New(Config{URL: url}, testLogger())
	require.NoError(t, err)

	_, err = s.IndexExists(context.Background(), "products")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))

	err = s.Ping(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
}
