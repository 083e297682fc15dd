package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"pos-ledger/internal/config"
	"pos-ledger/internal/database"
	"pos-ledger/internal/domain"
	"pos-ledger/internal/metrics"
	custommiddleware "pos-ledger/internal/middleware"
	"pos-ledger/internal/repository"
	"pos-ledger/internal/repository/memory"
	"pos-ledger/internal/service"
	"pos-ledger/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the external resources the server is built on. DB is nil
// under the memory store driver; Redis is optional and backs carts and rate
// limiting when present.
type Dependencies struct {
	DB        database.Service
	Redis     *redis.Client
	Publisher service.EventPublisher
	Registry  *prometheus.Registry
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

// stores groups the repositories selected by the store driver
type stores struct {
	products repository.ProductRepository
	ledger   repository.InventoryLedger
	records  repository.RecordRepository
	expenses repository.ExpenseRepository
	carts    repository.CartStore
}

func newStores(cfg *config.Config, deps Dependencies) stores {
	policy := domain.StockPolicy(cfg.Checkout.StockPolicy)

	var s stores
	if cfg.Store.Driver == config.DriverMemory || deps.DB == nil {
		catalog := memory.NewCatalog(policy)
		s = stores{
			products: catalog,
			ledger:   catalog,
			records:  memory.NewRecordRepository(),
			expenses: memory.NewExpenseRepository(),
		}
	} else {
		db := deps.DB.DB()
		s = stores{
			products: repository.NewProductRepository(db),
			ledger:   repository.NewInventoryRepository(db, policy),
			records:  repository.NewRecordRepository(db),
			expenses: repository.NewExpenseRepository(db),
		}
	}

	if deps.Redis != nil {
		s.carts = repository.NewRedisCartStore(deps.Redis, cfg.Redis.CartTTL)
	} else {
		s.carts = memory.NewCartStore()
	}
	return s
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	if deps.Publisher == nil {
		deps.Publisher = service.NoopPublisher{}
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	ledgerMetrics := metrics.NewWithRegisterer(deps.Registry)

	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack(custommiddleware.StackOptions{
		Logger:         logger,
		Metrics:        ledgerMetrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Development:    cfg.IsDevelopment(),
	})...)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{"status": "ok", "store": cfg.Store.Driver}
		status := http.StatusOK
		if deps.DB != nil {
			db := deps.DB.Health()
			health["database"] = db
			if db["status"] != "up" {
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})
	router.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	s := newStores(cfg, deps)
	location, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		location = time.UTC
	}

	retry := service.RetryConfig{
		MaxAttempts:    cfg.Checkout.MaxAttempts,
		InitialBackoff: cfg.Checkout.InitialBackoff,
		MaxBackoff:     cfg.Checkout.MaxBackoff,
	}

	// Initialize services
	checkoutService := service.NewCheckoutService(s.records, s.ledger, service.CheckoutOptions{
		Retry:       retry,
		StockPolicy: domain.StockPolicy(cfg.Checkout.StockPolicy),
		Publisher:   deps.Publisher,
		Metrics:     ledgerMetrics,
		Logger:      logger,
	})
	compensationService := service.NewCompensationService(s.records, s.ledger, service.CompensationOptions{
		Retry:     retry,
		Publisher: deps.Publisher,
		Metrics:   ledgerMetrics,
		Logger:    logger,
	})
	catalogService := service.NewCatalogService(s.products, s.ledger, logger)
	cartService := service.NewCartService(s.carts, s.products, checkoutService, logger)
	recordService := service.NewRecordService(s.records)
	expenseService := service.NewExpenseService(s.expenses, logger)
	reportService := service.NewReportService(s.records, s.expenses, location)

	// Initialize handlers
	productHandler := transport.NewProductHandler(catalogService, logger.Named("products"))
	cartHandler := transport.NewCartHandler(cartService, logger.Named("carts"))
	recordHandler := transport.NewRecordHandler(recordService, checkoutService, compensationService, logger.Named("records"))
	expenseHandler := transport.NewExpenseHandler(expenseService, logger.Named("expenses"))
	reportHandler := transport.NewReportHandler(reportService, location, logger.Named("reports"))

	requireManager := custommiddleware.RequireManager(logger)

	router.Group(func(r chi.Router) {
		r.Use(operatorMiddleware(cfg, logger))
		if deps.Redis != nil {
			r.Use(custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "rate_limit",
			}, logger))
		}

		productHandler.RegisterRoutes(r, requireManager)
		cartHandler.RegisterRoutes(r)
		recordHandler.RegisterRoutes(r, requireManager)
		expenseHandler.RegisterRoutes(r, requireManager)
		reportHandler.RegisterRoutes(r)
	})

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

// operatorMiddleware verifies operator tokens. Without a JWT secret, which
// config only allows in development, every request runs as a manager.
func operatorMiddleware(cfg *config.Config, logger *zap.Logger) func(http.Handler) http.Handler {
	if cfg.JWT.Secret != "" {
		return custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	}

	logger.Warn("JWT_SECRET not set, API requests run as a development manager")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := custommiddleware.WithOperator(r.Context(), "", custommiddleware.RoleManager)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if closer, ok := s.deps.Publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
