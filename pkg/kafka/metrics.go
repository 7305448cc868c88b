package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "catalog"
	metricsSubsystem = "events"
)

// Outcome label values.
const (
	outcomeProcessed = "processed"
	outcomeFailed    = "failed"
	outcomePublished = "published"
	outcomeError     = "error"
)

// Reconciliation handlers rewrite up to three documents, so most runs take
// a few store round trips.
var handleBuckets = prometheus.ExponentialBuckets(0.005, 2, 10)

var (
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "received_total",
		Help:      "Catalog events fetched from Kafka.",
	}, []string{"topic", "consumer_group"})

	// eventsHandled counts handled events by final outcome, after retries.
	eventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "handled_total",
		Help:      "Catalog events handled, by outcome.",
	}, []string{"topic", "consumer_group", "outcome"})

	eventHandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "handle_duration_seconds",
		Help:      "Time spent handling one catalog event, retries included.",
		Buckets:   handleBuckets,
	}, []string{"topic", "consumer_group"})

	eventsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "duplicate_total",
		Help:      "Catalog events skipped because their event id was already handled.",
	}, []string{"event_type"})

	eventsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "dead_lettered_total",
		Help:      "Catalog events moved to the dead-letter topic.",
	}, []string{"topic", "consumer_group"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "published_total",
		Help:      "Catalog events written to Kafka, by outcome.",
	}, []string{"topic", "outcome"})

	eventPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "publish_duration_seconds",
		Help:      "Time spent writing one catalog event to Kafka.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})
)
