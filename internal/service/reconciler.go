package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog/internal/domain"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// Reconciler completes rollbacks the Coordinator could not finish. Every step
// is a full replace or an idempotent delete, so a redelivered request is
// harmless.
type Reconciler struct {
	products  *ProductRepository
	customers *CustomerRepository
	orders    *OrderRepository
	metrics   *PlacementMetrics
	logger    *slog.Logger
}

// NewReconciler creates a new reconciler. metrics may be nil.
func NewReconciler(products *ProductRepository, customers *CustomerRepository, orders *OrderRepository, metrics *PlacementMetrics, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		products:  products,
		customers: customers,
		orders:    orders,
		metrics:   metrics,
		logger:    logger,
	}
}

// Reconcile restores the pre-placement product and customer documents that
// were left overwritten and removes the order.
func (r *Reconciler) Reconcile(ctx context.Context, rec domain.Reconciliation) error {
	if rec.OrderID == "" {
		return apperrors.InvalidInput("reconciliation without order id")
	}

	if rec.ProductApplied {
		if rec.Product.ID == "" {
			return apperrors.InvalidInput("reconciliation without product snapshot")
		}
		if _, err := r.products.Replace(ctx, rec.Product.ID, &rec.Product); err != nil {
			return fmt.Errorf("restore product %s: %w", rec.Product.ID, err)
		}
	}

	if rec.CustomerApplied {
		if rec.Customer.ID == "" {
			return apperrors.InvalidInput("reconciliation without customer snapshot")
		}
		if _, err := r.customers.Replace(ctx, rec.Customer.ID, &rec.Customer); err != nil {
			return fmt.Errorf("restore customer %s: %w", rec.Customer.ID, err)
		}
	}

	if err := r.orders.Delete(ctx, rec.OrderID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("delete order %s: %w", rec.OrderID, err)
	}

	if r.metrics != nil {
		r.metrics.reconciled.Inc()
	}
	r.logger.InfoContext(ctx, "order placement reconciled",
		slog.String("order_id", rec.OrderID),
		slog.Bool("product_restored", rec.ProductApplied),
		slog.Bool("customer_restored", rec.CustomerApplied),
	)
	return nil
}
