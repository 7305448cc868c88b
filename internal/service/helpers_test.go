package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/guard"
	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/store"
	"github.com/utafrali/catalog/internal/store/memory"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// faultyStore wraps a memory store and injects failures per document. Write
// and delete faults are keyed by "index/id" and the 1-based call number for
// that key; a zero call number fails every call. A late fault applies the
// write and still returns the error, like a client timeout after the store
// accepted the document.
type faultyStore struct {
	store.DocumentStore

	mu         sync.Mutex
	writeCalls map[string]int
	writeFault map[string]map[int]error
	lateFault  map[string]map[int]error
	misreport  map[string]store.Outcome
	deleteFail map[string]error
	writes     map[string]int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		DocumentStore: memory.New(),
		writeCalls:    make(map[string]int),
		writeFault:    make(map[string]map[int]error),
		lateFault:     make(map[string]map[int]error),
		misreport:     make(map[string]store.Outcome),
		deleteFail:    make(map[string]error),
		writes:        make(map[string]int),
	}
}

func (f *faultyStore) failWrite(index, id string, call int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := index + "/" + id
	if f.writeFault[key] == nil {
		f.writeFault[key] = make(map[int]error)
	}
	f.writeFault[key][call] = err
}

func (f *faultyStore) failWriteAfterApply(index, id string, call int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := index + "/" + id
	if f.lateFault[key] == nil {
		f.lateFault[key] = make(map[int]error)
	}
	f.lateFault[key][call] = err
}

func (f *faultyStore) failDelete(index, id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteFail[index+"/"+id] = err
}

func (f *faultyStore) misreportWrite(index, id string, outcome store.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misreport[index+"/"+id] = outcome
}

func (f *faultyStore) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeFault = make(map[string]map[int]error)
	f.lateFault = make(map[string]map[int]error)
	f.misreport = make(map[string]store.Outcome)
	f.deleteFail = make(map[string]error)
}

func (f *faultyStore) writeCount(index string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[index]
}

func (f *faultyStore) IndexDocument(ctx context.Context, index, id string, body []byte) (store.Outcome, error) {
	key := index + "/" + id

	f.mu.Lock()
	f.writeCalls[key]++
	call := f.writeCalls[key]
	faults := f.writeFault[key]
	late := f.lateFault[key][call]
	outcome, misreport := f.misreport[key]
	f.mu.Unlock()

	if err, ok := faults[call]; ok {
		return "", err
	}
	if err, ok := faults[0]; ok {
		return "", err
	}

	got, err := f.DocumentStore.IndexDocument(ctx, index, id, body)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.writes[index]++
	f.mu.Unlock()

	if late != nil {
		return "", late
	}
	if misreport {
		return outcome, nil
	}
	return got, nil
}

func (f *faultyStore) DeleteDocument(ctx context.Context, index, id string) (store.Outcome, error) {
	f.mu.Lock()
	err := f.deleteFail[index+"/"+id]
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.DocumentStore.DeleteDocument(ctx, index, id)
}

// recordingEvents captures published events.
type recordingEvents struct {
	mu              sync.Mutex
	placed          []domain.Order
	reconciliations []domain.Reconciliation
	err             error
}

func (r *recordingEvents) PublishOrderPlaced(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, *order)
	return r.err
}

func (r *recordingEvents) PublishReconciliationRequired(_ context.Context, rec domain.Reconciliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciliations = append(r.reconciliations, rec)
	return r.err
}

type fixture struct {
	store       *faultyStore
	products    *ProductRepository
	customers   *CustomerRepository
	orders      *OrderRepository
	events      *recordingEvents
	metrics     *PlacementMetrics
	guard       *guard.Memory
	coordinator *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fs := newFaultyStore()
	f := &fixture{
		store:     fs,
		products:  repository.New[domain.Product](fs, domain.ProductSchema, "product"),
		customers: repository.New[domain.Customer](fs, domain.CustomerSchema, "customer"),
		orders:    repository.New[domain.Order](fs, domain.OrderSchema, "order"),
		events:    &recordingEvents{},
		metrics:   NewPlacementMetrics(prometheus.NewRegistry()),
		guard:     guard.NewMemory(time.Minute),
	}
	f.coordinator = NewCoordinator(f.products, f.customers, f.orders, f.guard, newTestLogger(),
		WithEvents(f.events),
		WithMetrics(f.metrics),
	)
	return f
}

// seed stores p1 (Widget, 10.0, stock 5) and c1 (Alice).
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.products.Upsert(ctx, "p1", &domain.Product{Name: "Widget", Price: 10, Stock: 5}, store.OutcomeCreated)
	require.NoError(t, err)
	_, err = f.customers.Upsert(ctx, "c1", &domain.Customer{Name: "Alice"}, store.OutcomeCreated)
	require.NoError(t, err)
}

func (f *fixture) product(t *testing.T, id string) *domain.Product {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) customer(t *testing.T, id string) *domain.Customer {
	t.Helper()
	c, err := f.customers.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) orderExists(t *testing.T, id string) bool {
	t.Helper()
	ok, err := f.orders.Exists(context.Background(), id)
	require.NoError(t, err)
	return ok
}

var errStoreDown = apperrors.StoreUnavailable(context.DeadlineExceeded)
