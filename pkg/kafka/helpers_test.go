package kafka

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	topicPlaced         = "catalog.order.placed"
	topicReconciliation = "catalog.order.reconciliation_required"
	reconcilerGroup     = "catalog-reconciler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// reconciliation mirrors the order.reconciliation_required payload.
type reconciliation struct {
	OrderID         string          `json:"orderId"`
	Product         productSnapshot `json:"product"`
	ProductApplied  bool            `json:"productApplied"`
	CustomerApplied bool            `json:"customerApplied"`
	Reason          string          `json:"reason"`
}

type productSnapshot struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// reconciliationEvent builds an order.reconciliation_required envelope for
// orderID with a fixed event id.
func reconciliationEvent(eventID, orderID string) *Event {
	rec := reconciliation{
		OrderID:        orderID,
		Product:        productSnapshot{ID: "p1", Name: "Widget", Price: 10, Stock: 5},
		ProductApplied: true,
		Reason:         "restore product: store unavailable",
	}
	e, err := NewEvent(topicReconciliation, orderID, "order", "catalog-service", rec)
	if err != nil {
		panic(err)
	}
	e.EventID = eventID
	e.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return e.WithCorrelationID("req-" + orderID).WithMetadata(MetadataReason, rec.Reason)
}

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	return exporter
}

func requireSpan(t *testing.T, exporter *tracetest.InMemoryExporter, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range exporter.GetSpans() {
		if s.Name == name {
			return s
		}
	}
	require.Failf(t, "span not recorded", "no span named %q", name)
	return tracetest.SpanStub{}
}
