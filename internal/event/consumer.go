package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog/internal/domain"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
	"github.com/utafrali/catalog/pkg/logger"
)

// Reconciler finishes the rollback of a partially applied placement.
type Reconciler interface {
	Reconcile(ctx context.Context, rec domain.Reconciliation) error
}

// Consumer handles order events that require follow-up work.
type Consumer struct {
	reconciler Reconciler
	logger     *slog.Logger
}

// NewConsumer creates a new event consumer.
func NewConsumer(reconciler Reconciler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Handle processes a Kafka event based on its type. The event's correlation
// id is carried into the handler context.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}
	switch event.EventType {
	case TopicOrderReconciliationRequired:
		return c.handleReconciliationRequired(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) handleReconciliationRequired(ctx context.Context, event *pkgkafka.Event) error {
	var rec domain.Reconciliation
	if err := event.UnmarshalData(&rec); err != nil {
		return err
	}
	if rec.OrderID == "" {
		rec.OrderID = event.AggregateID
	}
	if rec.Reason == "" {
		rec.Reason = event.Reason()
	}

	if err := c.reconciler.Reconcile(ctx, rec); err != nil {
		return fmt.Errorf("reconcile order %s: %w", rec.OrderID, err)
	}

	c.logger.InfoContext(ctx, "reconciled order placement",
		slog.String("order_id", rec.OrderID),
		slog.String("event_id", event.EventID),
	)

	return nil
}
