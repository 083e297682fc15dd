package middleware

import (
	"net/http"

	"pos-ledger/internal/metrics"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// SessionIDHeader lets an unauthenticated till name its own cart session
const SessionIDHeader = "X-Session-ID"

// CORSMiddleware lets browser tills call the API. Development accepts any
// origin; otherwise only the configured ones.
func CORSMiddleware(allowedOrigins []string, isDevelopment bool) func(http.Handler) http.Handler {
	if isDevelopment {
		allowedOrigins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionIDHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// StackOptions configures DefaultMiddlewareStack
type StackOptions struct {
	Logger         *zap.Logger
	Metrics        *metrics.LedgerMetrics
	AllowedOrigins []string
	Development    bool
}

// DefaultMiddlewareStack returns the middleware every route runs through, in order
func DefaultMiddlewareStack(opts StackOptions) []func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		LoggingMiddleware(logger),
		ErrorHandlingMiddleware(logger),
		CORSMiddleware(opts.AllowedOrigins, opts.Development),
		middleware.Compress(5),
		MetricsMiddleware(opts.Metrics),
	}
}
