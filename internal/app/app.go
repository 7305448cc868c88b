package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalog/internal/config"
	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/guard"
	handler "github.com/utafrali/catalog/internal/handler/http"
	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/internal/store"
	blevestore "github.com/utafrali/catalog/internal/store/bleve"
	esstore "github.com/utafrali/catalog/internal/store/elasticsearch"
	"github.com/utafrali/catalog/internal/store/memory"
	"github.com/utafrali/catalog/pkg/database"
	"github.com/utafrali/catalog/pkg/health"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
	"github.com/utafrali/catalog/pkg/middleware"
	"github.com/utafrali/catalog/pkg/tracing"
)

const (
	serviceName = "catalog-service"

	reconcilerGroupID = "catalog-reconciler"
	guardKeyPrefix    = "catalog:placement:"
	dedupKeyPrefix    = "catalog:event:"
	dedupTTL          = 24 * time.Hour
)

// Option configures an App.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers the service metrics with reg instead of the
// default Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          store.DocumentStore
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	// Tracing.
	a.shutdownTracer, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Document store.
	a.store, err = newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("store", a.store.Ping)

	// Repositories. Index creation is retried lazily on first use, so a
	// store that is not reachable yet does not block startup.
	maxResults := repository.WithMaxResults(cfg.SearchMaxResults)
	products := repository.New[domain.Product](a.store, domain.ProductSchema.WithIndexPrefix(cfg.IndexPrefix), "product", maxResults)
	customers := repository.New[domain.Customer](a.store, domain.CustomerSchema.WithIndexPrefix(cfg.IndexPrefix), "customer", maxResults)
	orders := repository.New[domain.Order](a.store, domain.OrderSchema.WithIndexPrefix(cfg.IndexPrefix), "order", maxResults)

	for _, idx := range []interface{ EnsureIndex(context.Context) error }{products, customers, orders} {
		if err := idx.EnsureIndex(ctx); err != nil {
			logger.Warn("failed to ensure index at startup", slog.String("error", err.Error()))
		}
	}

	// Redis.
	if cfg.UsesRedis() {
		a.redis, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:          cfg.RedisHost,
			Port:          cfg.RedisPort,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			SlowThreshold: database.DefaultRedisConfig().SlowThreshold,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		healthHandler.RegisterCritical("redis", database.RedisChecker(a.redis))
		logger.Info("redis connected", slog.String("host", cfg.RedisHost), slog.Int("port", cfg.RedisPort))
	}

	// Placement guard.
	var placementGuard guard.Guard
	if cfg.PlacementGuard == config.GuardRedis {
		placementGuard = guard.NewRedis(a.redis, guardKeyPrefix, cfg.PlacementLockTTL)
	} else {
		placementGuard = guard.NewMemory(cfg.PlacementLockTTL)
	}

	// Service layer.
	metrics := service.NewPlacementMetrics(o.registerer)
	coordinatorOpts := []service.CoordinatorOption{service.WithMetrics(metrics)}

	// Kafka.
	if cfg.EventsEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		coordinatorOpts = append(coordinatorOpts, service.WithEvents(event.NewProducer(a.producer, logger)))

		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})

		if cfg.ReconcilerEnabled {
			reconciler := service.NewReconciler(products, customers, orders, metrics, logger)
			a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

			var dedup pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(dedupTTL)
			if a.redis != nil {
				dedup = pkgkafka.NewRedisIdempotencyStore(a.redis, dedupKeyPrefix, dedupTTL)
			}

			consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  reconcilerGroupID,
				Topic:    event.TopicOrderReconciliationRequired,
				MinBytes: 1,
				MaxBytes: 10e6, // 10 MB
			}, pkgkafka.IdempotentHandler(dedup, event.NewConsumer(reconciler, logger).Handle, logger), logger).
				WithDeadLetter(a.dlq)
			a.consumers = append(a.consumers, consumer)
		}

		logger.Info("kafka initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Int("consumer_count", len(a.consumers)),
		)
	}

	coordinator := service.NewCoordinator(products, customers, orders, placementGuard, logger, coordinatorOpts...)

	// HTTP router.
	router := handler.NewRouter(handler.Services{
		Products:  service.NewEntityService(products, "product", logger),
		Customers: service.NewEntityService(customers, "customer", logger),
		Orders:    service.NewOrderService(orders, coordinator),
	}, healthHandler, middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func newStore(cfg *config.Config, logger *slog.Logger) (store.DocumentStore, error) {
	switch cfg.StoreBackend {
	case config.BackendElasticsearch:
		s, err := esstore.New(esstore.Config{
			URL:      cfg.ElasticURL,
			Username: cfg.ElasticUsername,
			Password: cfg.ElasticPassword,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch store: %w", err)
		}
		logger.Info("elasticsearch store initialized", slog.String("url", cfg.ElasticURL))
		return s, nil
	case config.BackendBleve:
		s, err := blevestore.New(cfg.BlevePath, logger)
		if err != nil {
			return nil, fmt.Errorf("init bleve store: %w", err)
		}
		logger.Info("bleve store initialized", slog.String("path", cfg.BlevePath))
		return s, nil
	case config.BackendMemory:
		logger.Info("in-memory store initialized")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Handler returns the HTTP handler served by the application.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.release())

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release closes consumers, producers and connections in reverse
// dependency order. Components that were never opened are skipped.
func (a *App) release() error {
	var errs []error
	closeLogged := func(name string, err error) {
		if err != nil {
			a.logger.Error(name+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for _, c := range a.consumers {
		closeLogged("kafka consumer", c.Close())
	}
	if a.dlq != nil {
		closeLogged("kafka dlq producer", a.dlq.Close())
	}
	if a.producer != nil {
		closeLogged("kafka producer", a.producer.Close())
	}
	if a.redis != nil {
		closeLogged("redis", a.redis.Close())
	}
	if a.store != nil {
		closeLogged("store", a.store.Close())
	}
	return errors.Join(errs...)
}
