package service

import (
	"context"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput carries the catalog attributes of a product. OpeningStock is
// only used on create.
type ProductInput struct {
	Name         string
	Code         string
	SalePrice    decimal.Decimal
	CostPrice    decimal.Decimal
	OpeningStock int
}

// ProductQuery selects a page of the catalog. A non-empty Search switches to
// name/code matching and ignores the sort.
type ProductQuery struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder repository.SortOrder
}

// ProductPage is one page of products plus the total match count
type ProductPage struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// CatalogService manages products. Stock is read through the inventory
// ledger and changed only by Resync, an explicit absolute overwrite.
type CatalogService interface {
	Create(ctx context.Context, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetByCode(ctx context.Context, code string) (*domain.Product, error)
	List(ctx context.Context, query ProductQuery) (*ProductPage, error)
	Stock(ctx context.Context, id uuid.UUID) (int, error)
	ResyncStock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error)
	Movements(ctx context.Context, id uuid.UUID, limit int) ([]domain.StockMovement, error)
}

type catalogService struct {
	products repository.ProductRepository
	ledger   repository.InventoryLedger
	logger   *zap.Logger
	now      func() time.Time
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(products repository.ProductRepository, ledger repository.InventoryLedger, logger *zap.Logger) CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &catalogService{
		products: products,
		ledger:   ledger,
		logger:   logger.Named("catalog"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *catalogService) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if input.OpeningStock < 0 {
		return nil, domain.ErrNegativeStock
	}

	now := s.now()
	product := &domain.Product{
		ID:            uuid.New(),
		Name:          input.Name,
		Code:          input.Code,
		SalePrice:     input.SalePrice,
		CostPrice:     input.CostPrice,
		StockQuantity: input.OpeningStock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	product.Normalize()
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.Int("opening_stock", product.StockQuantity),
	)
	return product, nil
}

func (s *catalogService) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	product := &domain.Product{
		ID:        id,
		Name:      input.Name,
		Code:      input.Code,
		SalePrice: input.SalePrice,
		CostPrice: input.CostPrice,
	}
	product.Normalize()
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	return s.products.FindByID(ctx, id)
}

// Delete removes a product from the catalog. Records that sold it keep their
// snapshot lines.
func (s *catalogService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

func (s *catalogService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *catalogService) GetByCode(ctx context.Context, code string) (*domain.Product, error) {
	return s.products.FindByCode(ctx, code)
}

func (s *catalogService) List(ctx context.Context, query ProductQuery) (*ProductPage, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 || query.PageSize > 100 {
		query.PageSize = 20
	}

	var (
		products []*domain.Product
		total    int
		err      error
	)
	if query.Search != "" {
		products, total, err = s.products.Search(ctx, query.Search, query.Page, query.PageSize)
	} else {
		products, total, err = s.products.List(ctx, query.Page, query.PageSize, query.SortBy, query.SortOrder)
	}
	if err != nil {
		return nil, err
	}

	return &ProductPage{
		Products: products,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}, nil
}

func (s *catalogService) Stock(ctx context.Context, id uuid.UUID) (int, error) {
	return s.ledger.CurrentStock(ctx, id)
}

func (s *catalogService) ResyncStock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error) {
	previous, err := s.ledger.CurrentStock(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Resync(ctx, id, quantity); err != nil {
		return nil, err
	}

	s.logger.Warn("stock resynchronised",
		zap.String("product_id", id.String()),
		zap.Int("previous", previous),
		zap.Int("quantity", quantity),
	)
	return s.products.FindByID(ctx, id)
}

func (s *catalogService) Movements(ctx context.Context, id uuid.UUID, limit int) ([]domain.StockMovement, error) {
	if _, err := s.products.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.Movements(ctx, id, limit)
}
