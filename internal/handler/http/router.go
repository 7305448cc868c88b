package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/health"
	"github.com/utafrali/catalog/pkg/middleware"
)

// serviceName labels HTTP metrics and spans.
const serviceName = "catalog"

// Services bundles the use cases the router exposes.
type Services struct {
	Products  *service.ProductService
	Customers *service.CustomerService
	Orders    *service.OrderService
}

// entityRoutes is implemented by every EntityHandler instantiation.
type entityRoutes interface {
	Create(http.ResponseWriter, *http.Request)
	Update(http.ResponseWriter, *http.Request)
	Delete(http.ResponseWriter, *http.Request)
	Get(http.ResponseWriter, *http.Request)
	List(http.ResponseWriter, *http.Request)
	Search(http.ResponseWriter, *http.Request)
}

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	cors middleware.CORSConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cors))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	mountEntity(r, "/products", NewProductHandler(svcs.Products, logger))
	mountEntity(r, "/customers", NewCustomerHandler(svcs.Customers, logger))

	orders := NewOrderHandler(svcs.Orders, logger)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", orders.List)
		r.Get("/search/{query}", orders.Search)
		r.Get("/search/{variant}/{id}/{query}", orders.SearchScoped)
		r.Get("/{id}", orders.Get)
		r.Get("/{variant}/{id}", orders.ListScoped)
		r.Post("/{id}", orders.Place)
	})

	return r
}

func mountEntity(r chi.Router, prefix string, h entityRoutes) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/search/{query}", h.Search)
		r.Get("/{id}", h.Get)
		r.Post("/{id}", h.Create)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}
