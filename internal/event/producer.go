package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog/internal/domain"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
	"github.com/utafrali/catalog/pkg/logger"
)

// Kafka topic constants for order domain events.
const (
	TopicOrderPlaced                 = "catalog.order.placed"
	TopicOrderReconciliationRequired = "catalog.order.reconciliation_required"
)

// Aggregate type constant.
const AggregateTypeOrder = "order"

// SourceCatalogService identifies events originating from this service.
const SourceCatalogService = "catalog-service"

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"productId"`
	CustomerID   string  `json:"customerId"`
	ProductName  string  `json:"productName"`
	CustomerName string  `json:"customerName"`
	Price        float64 `json:"price"`
	Amount       int     `json:"amount"`
	Total        float64 `json:"total"`
}

// publisher is the subset of *pkgkafka.Producer the event producer needs.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes order domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderPlaced publishes an order.placed event with the order snapshot.
func (p *Producer) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	data := OrderPlacedData{
		ID:           order.ID,
		ProductID:    order.ProductID,
		CustomerID:   order.CustomerID,
		ProductName:  order.ProductName,
		CustomerName: order.CustomerName,
		Price:        order.Price,
		Amount:       order.Amount,
		Total:        order.Total(),
	}

	event, err := pkgkafka.NewEvent(TopicOrderPlaced, order.ID, AggregateTypeOrder, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create order.placed event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicOrderPlaced, event); err != nil {
		return fmt.Errorf("publish order.placed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.placed event",
		slog.String("order_id", order.ID),
		slog.String("product_id", order.ProductID),
		slog.String("customer_id", order.CustomerID),
	)

	return nil
}

// PublishReconciliationRequired publishes an order.reconciliation_required
// event carrying the pre-placement snapshots.
func (p *Producer) PublishReconciliationRequired(ctx context.Context, rec domain.Reconciliation) error {
	event, err := pkgkafka.NewEvent(TopicOrderReconciliationRequired, rec.OrderID, AggregateTypeOrder, SourceCatalogService, rec)
	if err != nil {
		return fmt.Errorf("create order.reconciliation_required event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).WithMetadata(pkgkafka.MetadataReason, rec.Reason)

	if err := p.kafka.Publish(ctx, TopicOrderReconciliationRequired, event); err != nil {
		return fmt.Errorf("publish order.reconciliation_required event: %w", err)
	}

	p.logger.InfoContext(ctx, "published order.reconciliation_required event",
		slog.String("order_id", rec.OrderID),
		slog.Bool("product_applied", rec.ProductApplied),
		slog.Bool("customer_applied", rec.CustomerApplied),
	)

	return nil
}
