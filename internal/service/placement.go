package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/guard"
	"github.com/utafrali/catalog/internal/store"
	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/tracing"
)

// PlaceOrderInput holds the parameters for placing an order. Names and price
// are always taken from the stored product and customer.
type PlaceOrderInput struct {
	ProductID  string
	CustomerID string
	Amount     int
}

// EventPublisher announces placement outcomes. Publishing is best effort.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
	PublishReconciliationRequired(ctx context.Context, rec domain.Reconciliation) error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithEvents publishes placement events to p.
func WithEvents(p EventPublisher) CoordinatorOption {
	return func(c *Coordinator) { c.events = p }
}

// WithMetrics records placement outcomes in m.
func WithMetrics(m *PlacementMetrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator places orders across the product, customer and order
// collections. The store has no multi-document transactions, so a failed
// reservation is undone with compensating writes; state that cannot be
// undone is handed to the reconciler through an event.
type Coordinator struct {
	products  *ProductRepository
	customers *CustomerRepository
	orders    *OrderRepository
	guard     guard.Guard
	events    EventPublisher
	metrics   *PlacementMetrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator. g serializes placements per order id.
func NewCoordinator(
	products *ProductRepository,
	customers *CustomerRepository,
	orders *OrderRepository,
	g guard.Guard,
	logger *slog.Logger,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		products:  products,
		customers: customers,
		orders:    orders,
		guard:     g,
		tracer:    tracing.Tracer("catalog/placement"),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Place validates and records order id, then reserves stock and charges the
// customer. Validation failures leave the store untouched. A failure after the
// order was recorded is compensated; if compensation itself fails the error
// matches apperrors.ErrReconciliationRequired.
func (c *Coordinator) Place(ctx context.Context, id string, input PlaceOrderInput) (*domain.Order, error) {
	ctx, span := c.tracer.Start(ctx, "order.place", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("product.id", input.ProductID),
		attribute.String("customer.id", input.CustomerID),
		attribute.Int("order.amount", input.Amount),
	))
	defer span.End()

	start := time.Now()
	order, reason, err := c.place(ctx, id, input)
	if c.metrics != nil {
		c.metrics.duration.Observe(time.Since(start).Seconds())
		if err != nil && reason != "" {
			c.metrics.rejected.WithLabelValues(reason).Inc()
		}
		if err == nil {
			c.metrics.placed.Inc()
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return order, nil
}

// place returns the rejection reason alongside validation errors.
func (c *Coordinator) place(ctx context.Context, id string, input PlaceOrderInput) (*domain.Order, string, error) {
	release, err := c.guard.Acquire(ctx, id)
	if errors.Is(err, guard.ErrHeld) {
		return nil, ReasonConflict, apperrors.AlreadyExists("order", "id", id)
	}
	if err != nil {
		return nil, ReasonError, fmt.Errorf("acquire placement guard for order %s: %w", id, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			c.logger.WarnContext(ctx, "failed to release placement guard",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
		}
	}()

	// Validating.
	exists, err := c.orders.Exists(ctx, id)
	if err != nil {
		return nil, ReasonError, err
	}
	if exists {
		return nil, ReasonConflict, apperrors.AlreadyExists("order", "id", id)
	}

	product, err := c.products.Get(ctx, input.ProductID)
	if err != nil {
		return nil, rejectionReason(err, ReasonProductNotFound), err
	}
	customer, err := c.customers.Get(ctx, input.CustomerID)
	if err != nil {
		return nil, rejectionReason(err, ReasonCustomerNotFound), err
	}
	if input.Amount > product.Stock {
		return nil, ReasonInsufficientStock, apperrors.InsufficientStock(product.ID, input.Amount, product.Stock)
	}

	// Recording. From here on a failed write may still have reached the
	// store, so every attempted step is undone.
	order, err := c.orders.Upsert(ctx, id, &domain.Order{
		ProductID:    product.ID,
		CustomerID:   customer.ID,
		ProductName:  product.Name,
		CustomerName: customer.Name,
		Price:        product.Price,
		Amount:       input.Amount,
	}, store.OutcomeCreated)
	if err != nil {
		return nil, ReasonError, c.compensate(ctx, id, product, customer, placementProgress{}, err)
	}

	// Reserving.
	reserved := *product
	reserved.Stock -= input.Amount
	if _, err := c.products.Upsert(ctx, product.ID, &reserved, store.OutcomeUpdated); err != nil {
		return nil, ReasonError, c.compensate(ctx, id, product, customer, placementProgress{
			product: true,
		}, err)
	}

	charged := *customer
	charged.Accrue(order.Total())
	if _, err := c.customers.Upsert(ctx, customer.ID, &charged, store.OutcomeUpdated); err != nil {
		return nil, ReasonError, c.compensate(ctx, id, product, customer, placementProgress{
			product:  true,
			customer: true,
		}, err)
	}

	c.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("product_id", order.ProductID),
		slog.String("customer_id", order.CustomerID),
		slog.Int("amount", order.Amount),
	)

	if c.events != nil {
		if err := c.events.PublishOrderPlaced(ctx, order); err != nil {
			c.logger.WarnContext(ctx, "failed to publish order.placed event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return order, "", nil
}

// placementProgress tracks which reservation writes were attempted. A write
// that returned an error may still have been applied.
type placementProgress struct {
	product  bool
	customer bool
}

// compensate undoes a partially applied placement: it writes back the original
// customer and product documents for every attempted reservation and deletes
// the order, a missing order counting as deleted. It returns cause when every
// step succeeded.
func (c *Coordinator) compensate(
	ctx context.Context,
	orderID string,
	product *domain.Product,
	customer *domain.Customer,
	pending placementProgress,
	cause error,
) error {
	ctx = context.WithoutCancel(ctx)
	var failures []error

	if pending.customer {
		if _, err := c.customers.Replace(ctx, customer.ID, customer); err != nil {
			failures = append(failures, fmt.Errorf("restore customer %s: %w", customer.ID, err))
		} else {
			pending.customer = false
		}
	}
	if pending.product {
		if _, err := c.products.Replace(ctx, product.ID, product); err != nil {
			failures = append(failures, fmt.Errorf("restore product %s: %w", product.ID, err))
		} else {
			pending.product = false
		}
	}
	if err := c.orders.Delete(ctx, orderID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		failures = append(failures, fmt.Errorf("delete order %s: %w", orderID, err))
	}

	if len(failures) == 0 {
		c.recordCompensation(CompensationRolledBack)
		c.logger.WarnContext(ctx, "order placement rolled back",
			slog.String("order_id", orderID),
			slog.String("error", cause.Error()),
		)
		return cause
	}

	c.recordCompensation(CompensationReconciliationRequired)
	compErr := errors.Join(failures...)
	c.logger.ErrorContext(ctx, "order placement left partially applied",
		slog.String("order_id", orderID),
		slog.Bool("product_applied", pending.product),
		slog.Bool("customer_applied", pending.customer),
		slog.String("cause", cause.Error()),
		slog.String("error", compErr.Error()),
	)

	rec := domain.Reconciliation{
		OrderID:         orderID,
		Product:         *product,
		Customer:        *customer,
		ProductApplied:  pending.product,
		CustomerApplied: pending.customer,
		Reason:          compErr.Error(),
	}
	if c.events == nil {
		c.logger.ErrorContext(ctx, "reconciliation event not published: events disabled",
			slog.String("order_id", orderID),
		)
	} else if err := c.events.PublishReconciliationRequired(ctx, rec); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish order.reconciliation_required event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	return apperrors.ReconciliationRequired(
		fmt.Sprintf("order %s was partially placed and requires reconciliation", orderID),
		errors.Join(cause, compErr),
	)
}

func (c *Coordinator) recordCompensation(result string) {
	if c.metrics != nil {
		c.metrics.compensations.WithLabelValues(result).Inc()
	}
}

func rejectionReason(err error, notFound string) string {
	if errors.Is(err, apperrors.ErrNotFound) {
		return notFound
	}
	return ReasonError
}
