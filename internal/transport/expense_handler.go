package transport

import (
	"net/http"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/middleware"
	"pos-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExpenseRequest represents the payload for recording an expense
type ExpenseRequest struct {
	Description string          `json:"description" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
}

// ExpenseHandler handles HTTP requests for operating expenses
type ExpenseHandler struct {
	expenses service.ExpenseService
	logger   *zap.Logger
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenses service.ExpenseService, logger *zap.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		expenses: expenses,
		logger:   logger,
	}
}

// RegisterRoutes registers all expense routes
func (h *ExpenseHandler) RegisterRoutes(r chi.Router, requireManager func(http.Handler) http.Handler) {
	r.Route("/api/expenses", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.With(requireManager).Delete("/{id}", h.Delete)
	})
}

// List handles listing expenses newest first
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.expenses.List(r.Context(), limitQuery(r))
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	if expenses == nil {
		expenses = []*domain.Expense{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, expenses)
}

// Create handles recording an expense
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	expense, err := h.expenses.Create(r.Context(), req.Description, req.Amount)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, expense)
}

// Delete handles removing an expense
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.expenses.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
