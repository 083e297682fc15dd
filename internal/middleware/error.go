package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pos-ledger/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// StatusFor maps a service error to its HTTP status
func StatusFor(err error) int {
	var (
		partial         *domain.PartialCommitError
		uncompensatable *domain.UncompensatableRecordError
		compensation    *domain.CompensationError
	)

	switch {
	case errors.As(err, &partial):
		return http.StatusAccepted
	case errors.As(err, &uncompensatable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &compensation):
		if domain.IsTransient(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrProductNameRequired),
		errors.Is(err, domain.ErrNegativePrice),
		errors.Is(err, domain.ErrNegativeStock),
		errors.Is(err, domain.ErrInvalidExpense):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrExpenseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductCodeTaken),
		errors.Is(err, domain.ErrNothingToReconcile):
		return http.StatusConflict
	case domain.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithDomainError writes err in the error envelope. Line level
// failures are listed under details so the operator can see which products
// were not adjusted.
func RespondWithDomainError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := StatusFor(err)

	var (
		short        *domain.InsufficientStockError
		compensation *domain.CompensationError
		details      map[string]interface{}
	)
	switch {
	case errors.As(err, &short):
		details = map[string]interface{}{"lines": short.Lines}
	case errors.As(err, &compensation):
		details = map[string]interface{}{"record_id": compensation.RecordID, "failed": compensation.Failed}
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", zap.Error(err))
		}
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}

	RespondWithErrorDetails(w, status, message, details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
