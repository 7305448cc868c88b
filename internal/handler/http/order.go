package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
)

// PlaceOrderRequest is the JSON request body for placing an order. Product
// name, customer name and price are taken from the stored documents.
type PlaceOrderRequest struct {
	ProductID  string `json:"productId" validate:"required"`
	CustomerID string `json:"customerId" validate:"required"`
	Amount     int    `json:"amount" validate:"required,gte=1"`
}

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// Place handles POST /orders/{id}
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeRequest[PlaceOrderRequest](w, r)
	if !ok {
		return
	}

	order, err := h.service.Place(r.Context(), id, service.PlaceOrderInput{
		ProductID:  req.ProductID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// Get handles GET /orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// List handles GET /orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	sortBy, order := sortParams(r)

	orders, err := h.service.List(r.Context(), sortBy, order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// Search handles GET /orders/search/{query}
func (h *OrderHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, ok := pathParam(w, r, "query")
	if !ok {
		return
	}
	sortBy, order := sortParams(r)

	orders, err := h.service.Search(r.Context(), query, sortBy, order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// ListScoped handles GET /orders/{variant}/{id}
func (h *OrderHandler) ListScoped(w http.ResponseWriter, r *http.Request) {
	variant, ok := pathParam(w, r, "variant")
	if !ok {
		return
	}
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	sortBy, order := sortParams(r)

	orders, err := h.service.ListScoped(r.Context(), variant, id, sortBy, order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// SearchScoped handles GET /orders/search/{variant}/{id}/{query}
func (h *OrderHandler) SearchScoped(w http.ResponseWriter, r *http.Request) {
	variant, ok := pathParam(w, r, "variant")
	if !ok {
		return
	}
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	query, ok := pathParam(w, r, "query")
	if !ok {
		return
	}
	sortBy, order := sortParams(r)

	orders, err := h.service.SearchScoped(r.Context(), variant, id, query, sortBy, order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}
