package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/validator"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// --- Request DTOs ---

// ProductRequest is the JSON request body for creating or replacing a product.
type ProductRequest struct {
	Name  string   `json:"name" validate:"required,max=256"`
	Price *float64 `json:"price" validate:"required,gte=0"`
	Stock *int     `json:"stock" validate:"required,gte=0"`
}

func (r ProductRequest) toEntity() *domain.Product {
	return &domain.Product{Name: r.Name, Price: *r.Price, Stock: *r.Stock}
}

// CustomerRequest is the JSON request body for creating or replacing a
// customer. Yield and purchases default to zero.
type CustomerRequest struct {
	Name      string  `json:"name" validate:"required,max=256"`
	Yield     float64 `json:"yield" validate:"gte=0"`
	Purchases int     `json:"purchases" validate:"gte=0"`
}

func (r CustomerRequest) toEntity() *domain.Customer {
	return &domain.Customer{Name: r.Name, Yield: r.Yield, Purchases: r.Purchases}
}

// DeleteResponse acknowledges a deleted document.
type DeleteResponse struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

// EntityHandler serves the create/read/update/delete and search endpoints of
// one collection. R is the request DTO.
type EntityHandler[T any, P repository.Entity[T], R any] struct {
	service  *service.EntityService[T, P]
	toEntity func(R) *T
	logger   *slog.Logger
}

// NewProductHandler creates the products handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *EntityHandler[domain.Product, *domain.Product, ProductRequest] {
	return &EntityHandler[domain.Product, *domain.Product, ProductRequest]{
		service:  svc,
		toEntity: ProductRequest.toEntity,
		logger:   logger,
	}
}

// NewCustomerHandler creates the customers handler.
func NewCustomerHandler(svc *service.CustomerService, logger *slog.Logger) *EntityHandler[domain.Customer, *domain.Customer, CustomerRequest] {
	return &EntityHandler[domain.Customer, *domain.Customer, CustomerRequest]{
		service:  svc,
		toEntity: CustomerRequest.toEntity,
		logger:   logger,
	}
}

// Create handles POST /{collection}/{id}
func (h *EntityHandler[T, P, R]) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeRequest[R](w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), id, h.toEntity(req))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: created})
}

// Update handles PATCH /{collection}/{id}
func (h *EntityHandler[T, P, R]) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeRequest[R](w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), id, h.toEntity(req))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: updated})
}

// Delete handles DELETE /{collection}/{id}
func (h *EntityHandler[T, P, R]) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: DeleteResponse{ID: id, Result: "deleted"}})
}

// Get handles GET /{collection}/{id}
func (h *EntityHandler[T, P, R]) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	entity, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entity})
}

// List handles GET /{collection}?sort-by=&order=
func (h *EntityHandler[T, P, R]) List(w http.ResponseWriter, r *http.Request) {
	sortBy, order := sortParams(r)

	list, err := h.service.List(r.Context(), sortBy, order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// Search handles GET /{collection}/search/{query}?sort-by=&order=
func (h *EntityHandler[T, P, R]) Search(w http.ResponseWriter, r *http.Request) {
	query, ok := pathParam(w, r, "query")
	if !ok {
		return
	}
	sortBy, order := sortParams(r)

	list, err := h.service.Search(r.Context(), query, sortBy, order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// decodeRequest reads and validates the JSON body. It writes a 400 and
// returns false on failure.
func decodeRequest[R any](w http.ResponseWriter, r *http.Request) (R, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req R
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return req, false
	}
	return req, true
}
