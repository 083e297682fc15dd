package transport

import (
	"net/http"
	"time"

	"pos-ledger/internal/middleware"
	"pos-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReportHandler handles HTTP requests for trading reports
type ReportHandler struct {
	reports  service.ReportService
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportHandler creates a new ReportHandler. Dates in requests are read in
// location.
func NewReportHandler(reports service.ReportService, location *time.Location, logger *zap.Logger) *ReportHandler {
	if location == nil {
		location = time.UTC
	}
	return &ReportHandler{
		reports:  reports,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes registers all report routes
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/reports/daily", h.Daily)
}

// Daily handles the summary of one calendar day, today when no date is given
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	day := h.now().In(h.location)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.location)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	report, err := h.reports.Daily(r.Context(), day)
	if err != nil {
		middleware.RespondWithDomainError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, report)
}
