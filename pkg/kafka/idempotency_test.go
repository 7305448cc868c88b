package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingReconciler records the orders it was asked to reconcile.
type countingReconciler struct {
	mu     sync.Mutex
	orders []string
	err    error
}

func (r *countingReconciler) handle(_ context.Context, e *Event) error {
	var rec reconciliation
	if err := e.UnmarshalData(&rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.orders = append(r.orders, rec.OrderID)
	return nil
}

func (r *countingReconciler) reconciled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.orders...)
}

// failingStore is an IdempotencyStore whose backend is down.
type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingStore) Add(context.Context, string) error {
	return errors.New("redis: connection refused")
}

func newTestMemoryStore(ttl time.Duration) (*MemoryIdempotencyStore, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryIdempotencyStore(ttl)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryIdempotencyStore_AddAndContains(t *testing.T) {
	s, _ := newTestMemoryStore(time.Hour)
	ctx := context.Background()

	got, err := s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, s.Add(ctx, "evt-1"))

	got, err = s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = s.Contains(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	s, now := newTestMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "evt-1"))

	*now = now.Add(time.Minute)
	got, _ := s.Contains(ctx, "evt-1")
	assert.True(t, got, "an entry is kept for the full ttl")

	*now = now.Add(time.Second)
	got, _ = s.Contains(ctx, "evt-1")
	assert.False(t, got)
	assert.Empty(t, s.seen)
}

func TestMemoryIdempotencyStore_AddSweepsExpired(t *testing.T) {
	s, now := newTestMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "evt-old"))
	*now = now.Add(2 * time.Minute)
	require.NoError(t, s.Add(ctx, "evt-new"))

	assert.Len(t, s.seen, 1)
	assert.Contains(t, s.seen, "evt-new")
}

func TestMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "evt-" + string(rune('a'+i%26))
			_ = s.Add(ctx, id)
			_, _ = s.Contains(ctx, id)
		}()
	}
	wg.Wait()

	assert.Len(t, s.seen, 26)
}

func TestIdempotentHandler_RedeliveredReconciliationSkipped(t *testing.T) {
	rec := &countingReconciler{}
	handler := IdempotentHandler(NewMemoryIdempotencyStore(time.Hour), rec.handle, testLogger())
	dup := eventsDuplicate.WithLabelValues(topicReconciliation)
	before := testutil.ToFloat64(dup)

	event := reconciliationEvent("evt-1", "o1")
	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))

	assert.Equal(t, []string{"o1"}, rec.reconciled())
	assert.InDelta(t, before+1, testutil.ToFloat64(dup), 1e-9)
}

func TestIdempotentHandler_DistinctEventsForSameOrder(t *testing.T) {
	rec := &countingReconciler{}
	handler := IdempotentHandler(NewMemoryIdempotencyStore(time.Hour), rec.handle, testLogger())

	require.NoError(t, handler(context.Background(), reconciliationEvent("evt-1", "o1")))
	require.NoError(t, handler(context.Background(), reconciliationEvent("evt-2", "o1")))

	assert.Equal(t, []string{"o1", "o1"}, rec.reconciled())
}

func TestIdempotentHandler_FailedReconciliationRetried(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	rec := &countingReconciler{err: errors.New("store unavailable")}
	handler := IdempotentHandler(store, rec.handle, testLogger())
	event := reconciliationEvent("evt-1", "o1")

	err := handler(context.Background(), event)
	require.EqualError(t, err, "store unavailable")

	seen, _ := store.Contains(context.Background(), "evt-1")
	assert.False(t, seen, "a failed event must not be recorded")

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	require.NoError(t, handler(context.Background(), event))
	assert.Equal(t, []string{"o1"}, rec.reconciled())
}

func TestIdempotentHandler_WithoutEventID(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	rec := &countingReconciler{}
	handler := IdempotentHandler(store, rec.handle, testLogger())

	event := reconciliationEvent("", "o1")
	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))

	assert.Equal(t, []string{"o1", "o1"}, rec.reconciled())
	assert.Empty(t, store.seen)
}

func TestIdempotentHandler_StoreDownStillReconciles(t *testing.T) {
	rec := &countingReconciler{}
	handler := IdempotentHandler(failingStore{}, rec.handle, testLogger())

	require.NoError(t, handler(context.Background(), reconciliationEvent("evt-1", "o1")))
	require.NoError(t, handler(context.Background(), reconciliationEvent("evt-1", "o1")))

	assert.Equal(t, []string{"o1", "o1"}, rec.reconciled())
}
