package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons reported by PlacementMetrics.
const (
	ReasonConflict          = "conflict"
	ReasonProductNotFound   = "product_not_found"
	ReasonCustomerNotFound  = "customer_not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonError             = "error"
)

// Compensation results reported by PlacementMetrics.
const (
	CompensationRolledBack             = "rolled_back"
	CompensationReconciliationRequired = "reconciliation_required"
)

// PlacementMetrics counts order placement outcomes.
type PlacementMetrics struct {
	placed        prometheus.Counter
	rejected      *prometheus.CounterVec
	compensations *prometheus.CounterVec
	reconciled    prometheus.Counter
	duration      prometheus.Histogram
}

// NewPlacementMetrics registers the placement metrics with reg. A nil reg
// uses the default registerer.
func NewPlacementMetrics(reg prometheus.Registerer) *PlacementMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PlacementMetrics{
		placed: f.NewCounter(prometheus.CounterOpts{
			Name: "catalog_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_order_placements_rejected_total",
			Help: "Total number of order placements rejected, by reason",
		}, []string{"reason"}),
		compensations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_order_compensations_total",
			Help: "Total number of order placements rolled back after a partial write, by result",
		}, []string{"result"}),
		reconciled: f.NewCounter(prometheus.CounterOpts{
			Name: "catalog_order_reconciliations_total",
			Help: "Total number of partially applied placements reconciled",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_order_placement_duration_seconds",
			Help:    "Duration of order placements in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
