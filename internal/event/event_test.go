package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
	"github.com/utafrali/catalog/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, rec domain.Reconciliation) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEvent(eventType string, data any) *pkgkafka.Event {
	dataBytes, _ := json.Marshal(data)
	return &pkgkafka.Event{
		EventID:       "evt-test-123",
		EventType:     eventType,
		AggregateID:   "o1",
		AggregateType: AggregateTypeOrder,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        SourceCatalogService,
		Data:          dataBytes,
	}
}

func TestPublishOrderPlaced(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: newTestLogger()}
	ctx := context.Background()

	order := &domain.Order{
		ID: "o1", ProductID: "p1", CustomerID: "c1",
		ProductName: "Widget", CustomerName: "Alice", Price: 10, Amount: 2,
	}

	pub.On("Publish", ctx, TopicOrderPlaced, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data OrderPlacedData
		if err := e.UnmarshalData(&data); err != nil {
			return false
		}
		return e.EventType == TopicOrderPlaced &&
			e.AggregateID == "o1" &&
			e.Source == SourceCatalogService &&
			data.Total == 20 &&
			data.ProductName == "Widget"
	})).Return(nil)

	require.NoError(t, p.PublishOrderPlaced(ctx, order))
	pub.AssertExpectations(t)
}

func TestPublishOrderPlaced_Error(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: newTestLogger()}

	pub.On("Publish", mock.Anything, TopicOrderPlaced, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishOrderPlaced(context.Background(), &domain.Order{ID: "o1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish order.placed event")
}

func TestPublishReconciliationRequired(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: newTestLogger()}

	rec := domain.Reconciliation{
		OrderID:        "o1",
		Product:        domain.Product{ID: "p1", Name: "Widget", Price: 10, Stock: 5},
		Customer:       domain.Customer{ID: "c1", Name: "Alice"},
		ProductApplied: true,
		Reason:         "restore product failed",
	}

	pub.On("Publish", mock.Anything, TopicOrderReconciliationRequired, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var got domain.Reconciliation
		if err := e.UnmarshalData(&got); err != nil {
			return false
		}
		return got == rec && e.Metadata["reason"] == rec.Reason
	})).Return(nil)

	require.NoError(t, p.PublishReconciliationRequired(context.Background(), rec))
	pub.AssertExpectations(t)
}

func TestHandle_ReconciliationRequired(t *testing.T) {
	rec := new(mockReconciler)
	c := NewConsumer(rec, newTestLogger())
	ctx := context.Background()

	payload := domain.Reconciliation{
		OrderID:         "o1",
		Product:         domain.Product{ID: "p1", Stock: 5},
		Customer:        domain.Customer{ID: "c1", Purchases: 1},
		ProductApplied:  true,
		CustomerApplied: true,
	}
	rec.On("Reconcile", ctx, payload).Return(nil)

	require.NoError(t, c.Handle(ctx, newTestEvent(TopicOrderReconciliationRequired, payload)))
	rec.AssertExpectations(t)
}

func TestHandle_ReconciliationRequired_OrderIDFromAggregate(t *testing.T) {
	rec := new(mockReconciler)
	c := NewConsumer(rec, newTestLogger())

	rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(r domain.Reconciliation) bool {
		return r.OrderID == "o1"
	})).Return(nil)

	require.NoError(t, c.Handle(context.Background(), newTestEvent(TopicOrderReconciliationRequired, domain.Reconciliation{})))
	rec.AssertExpectations(t)
}

func TestHandle_ReconcilerError(t *testing.T) {
	rec := new(mockReconciler)
	c := NewConsumer(rec, newTestLogger())

	rec.On("Reconcile", mock.Anything, mock.Anything).Return(errors.New("store down"))

	err := c.Handle(context.Background(), newTestEvent(TopicOrderReconciliationRequired, domain.Reconciliation{OrderID: "o1"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconcile order o1")
}

func TestHandle_InvalidPayload(t *testing.T) {
	rec := new(mockReconciler)
	c := NewConsumer(rec, newTestLogger())

	event := newTestEvent(TopicOrderReconciliationRequired, nil)
	event.Data = json.RawMessage(`{broken`)

	require.Error(t, c.Handle(context.Background(), event))
	rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestHandle_UnknownEventType(t *testing.T) {
	rec := new(mockReconciler)
	c := NewConsumer(rec, newTestLogger())

	require.NoError(t, c.Handle(context.Background(), newTestEvent(TopicOrderPlaced, nil)))
	rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestPublishOrderPlaced_CarriesCorrelationID(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: newTestLogger()}
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	pub.On("Publish", ctx, TopicOrderPlaced, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		return e.CorrelationID == "corr-1"
	})).Return(nil)

	require.NoError(t, p.PublishOrderPlaced(ctx, &domain.Order{ID: "o1"}))
	pub.AssertExpectations(t)
}

func TestHandle_RestoresCorrelationID(t *testing.T) {
	rec := new(mockReconciler)
	c := NewConsumer(rec, newTestLogger())

	payload := domain.Reconciliation{OrderID: "o1"}
	rec.On("Reconcile", mock.MatchedBy(func(ctx context.Context) bool {
		return logger.CorrelationIDFromContext(ctx) == "corr-2"
	}), payload).Return(nil)

	event := newTestEvent(TopicOrderReconciliationRequired, payload)
	event.CorrelationID = "corr-2"

	require.NoError(t, c.Handle(context.Background(), event))
	rec.AssertExpectations(t)
}

func TestHandle_ReconciliationRequired_ReasonFromMetadata(t *testing.T) {
	rec := new(mockReconciler)
	c := NewConsumer(rec, newTestLogger())

	rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(r domain.Reconciliation) bool {
		return r.Reason == "restore customer failed"
	})).Return(nil)

	event := newTestEvent(TopicOrderReconciliationRequired, domain.Reconciliation{OrderID: "o1"})
	event.WithMetadata(pkgkafka.MetadataReason, "restore customer failed")

	require.NoError(t, c.Handle(context.Background(), event))
	rec.AssertExpectations(t)
}
