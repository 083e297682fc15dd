package transport

import (
	"net/http"
	"strings"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/middleware"
	"pos-ledger/internal/repository"
	"pos-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest represents the create and update payload for a product
type ProductRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Code         string          `json:"code" validate:"max=64"`
	SalePrice    decimal.Decimal `json:"sale_price" validate:"gte=0"`
	CostPrice    decimal.Decimal `json:"cost_price" validate:"gte=0"`
	OpeningStock int             `json:"opening_stock" validate:"gte=0"`
}

func (r ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:         r.Name,
		Code:         r.Code,
		SalePrice:    r.SalePrice,
		CostPrice:    r.CostPrice,
		OpeningStock: r.OpeningStock,
	}
}

// StockRequest overwrites a product's stock counter after a physical count
type StockRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// StockResponse reports a product's stock counter
type StockResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ProductHandler handles HTTP requests for the product catalog
type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers all product routes. Catalog changes need the
// manager middleware.
func (h *ProductHandler) RegisterRoutes(r chi.Router, requireManager func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/code/{code}", h.GetByCode)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/stock", h.Stock)
		r.Get("/{id}/movements", h.Movements)

		r.Group(func(r chi.Router) {
			r.Use(requireManager)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Put("/{id}/stock", h.ResyncStock)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles catalog listing and search
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order := repository.SortOrderAsc
	if strings.EqualFold(q.Get("sort_order"), string(repository.SortOrderDesc)) {
		order = repository.SortOrderDesc
	}

	page, err := h.catalog.List(r.Context(), service.ProductQuery{
		Search:    q.Get("q"),
		Page:      intQuery(r, "page", 1),
		PageSize:  intQuery(r, "page_size", 0),
		SortBy:    q.Get("sort_by"),
		SortOrder: order,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// Get handles fetching one product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// GetByCode handles barcode and SKU lookups
func (h *ProductHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Stock handles reading the ledger's counter for a product
func (h *ProductHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	qty, err := h.catalog.Stock(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, StockResponse{ProductID: id.String(), Quantity: qty})
}

// Movements handles the stock history of a product, newest first
func (h *ProductHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	movements, err := h.catalog.Movements(r.Context(), id, limitQuery(r))
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	if movements == nil {
		movements = []domain.StockMovement{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, movements)
}

// Create handles adding a product to the catalog
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalog.Create(r.Context(), req.input())
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update handles changing a product's catalog attributes. Stock is untouched.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalog.Update(r.Context(), id, req.input())
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ResyncStock handles an absolute stock overwrite after a physical count
func (h *ProductHandler) ResyncStock(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req StockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalog.ResyncStock(r.Context(), id, req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	h.logger.Info("Stock resynced",
		zap.String("product_id", id.String()),
		zap.Int("quantity", req.Quantity),
		zap.String("user_id", userID),
	)
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete handles removing a product from the catalog
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
