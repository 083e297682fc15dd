package transport

import (
	"net/http"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/middleware"
	"pos-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RecordHandler handles HTTP requests for committed sales and purchases
type RecordHandler struct {
	records      service.RecordService
	checkout     service.CheckoutService
	compensation service.CompensationService
	logger       *zap.Logger
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(records service.RecordService, checkout service.CheckoutService, compensation service.CompensationService, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		records:      records,
		checkout:     checkout,
		compensation: compensation,
		logger:       logger,
	}
}

// RegisterRoutes registers all record routes. Void and reconcile change
// stock and need the manager middleware.
func (h *RecordHandler) RegisterRoutes(r chi.Router, requireManager func(http.Handler) http.Handler) {
	r.Route("/api/records", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireManager)
			r.Delete("/{id}", h.Void)
			r.Post("/{id}/reconcile", h.Reconcile)
		})
	})
}

// List handles listing records newest first, optionally of one kind
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	var kind domain.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		parsed, err := domain.ParseKind(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind = parsed
	}

	records, err := h.records.List(r.Context(), kind, limitQuery(r))
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}
	if records == nil {
		records = []*domain.Record{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, records)
}

// Get handles fetching one record with its items snapshot
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	record, err := h.records.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, record)
}

// Void handles deleting a record after reversing its stock effect. The
// record is kept when any inverse delta fails.
func (h *RecordHandler) Void(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	record, err := h.compensation.Void(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	h.logger.Info("Record voided",
		zap.String("record_id", record.ID.String()),
		zap.String("user_id", userID),
	)
	middleware.RespondWithJSON(w, http.StatusOK, record)
}

// Reconcile handles re-applying the stock deltas a record is still missing
func (h *RecordHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	record, err := h.checkout.Reconcile(r.Context(), id)
	if respondCommit(w, record, err, http.StatusOK) {
		return
	}

	middleware.RespondWithDomainError(w, err, h.logger)
}
