package transport

import (
	"errors"
	"io"
	"net/http"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/middleware"
	"pos-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddLineRequest adds a product to a cart. A missing qty means one.
type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"gte=0,lte=100000"`
}

// ScanRequest adds the product carrying a barcode or SKU code
type ScanRequest struct {
	Code string `json:"code" validate:"required,max=64"`
	Qty  int    `json:"qty" validate:"gte=0,lte=100000"`
}

// SetQtyRequest sets a line quantity. Values below one are clamped to one.
type SetQtyRequest struct {
	Qty int `json:"qty" validate:"lte=100000"`
}

// CheckoutRequest carries the discount for a checkout. Out of range values
// are clamped to 0..100.
type CheckoutRequest struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// CartResponse is a cart with its running totals
type CartResponse struct {
	Kind     domain.Kind       `json:"kind"`
	Lines    []domain.CartLine `json:"lines"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Cost     decimal.Decimal   `json:"cost"`
}

func newCartResponse(cart *domain.Cart) CartResponse {
	return CartResponse{
		Kind:     cart.Kind(),
		Lines:    cart.Lines(),
		Subtotal: cart.Subtotal(),
		Cost:     cart.Cost(),
	}
}

// CartHandler handles HTTP requests for sale and purchase carts
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/carts/{kind}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/lines", h.AddLine)
		r.Post("/scan", h.Scan)
		r.Put("/lines/{productID}", h.SetQty)
		r.Delete("/lines/{productID}", h.RemoveLine)
		r.Post("/checkout", h.Checkout)
	})
}

// Get handles reading the session's cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Get(r.Context(), sessionID(r), kind)
	h.respondCart(w, cart, err)
}

// AddLine handles adding a product by id
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	var req AddLineRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	cart, err := h.carts.AddProduct(r.Context(), sessionID(r), kind, uuid.MustParse(req.ProductID), req.Qty)
	h.respondCart(w, cart, err)
}

// Scan handles adding a product by barcode or SKU code
func (h *CartHandler) Scan(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	var req ScanRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	cart, err := h.carts.Scan(r.Context(), sessionID(r), kind, req.Code, req.Qty)
	h.respondCart(w, cart, err)
}

// SetQty handles changing a line's quantity
func (h *CartHandler) SetQty(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "productID")
	if !ok {
		return
	}

	var req SetQtyRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	cart, err := h.carts.SetQty(r.Context(), sessionID(r), kind, productID, req.Qty)
	h.respondCart(w, cart, err)
}

// RemoveLine handles dropping a product's line
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "productID")
	if !ok {
		return
	}

	cart, err := h.carts.RemoveLine(r.Context(), sessionID(r), kind, productID)
	h.respondCart(w, cart, err)
}

// Clear handles emptying the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(r.Context(), sessionID(r), kind); err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles committing the cart as a record. A record whose stock
// deltas did not all apply is answered with 202 and the unresolved lines.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	session := sessionID(r)
	record, err := h.carts.Checkout(r.Context(), session, operatorID(r), kind, req.DiscountPercent)
	if respondCommit(w, record, err, http.StatusCreated) {
		return
	}

	h.logger.Debug("Checkout failed",
		zap.String("session_id", session),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	middleware.RespondWithDomainError(w, err, h.logger)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, cart *domain.Cart, err error) {
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(cart))
}
