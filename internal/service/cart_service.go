package service

import (
	"context"
	"errors"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService manages each operator's sale and purchase carts between
// requests and hands them to checkout
type CartService interface {
	Get(ctx context.Context, sessionID string, kind domain.Kind) (*domain.Cart, error)
	AddProduct(ctx context.Context, sessionID string, kind domain.Kind, productID uuid.UUID, qty int) (*domain.Cart, error)
	// Scan adds the product carrying the barcode or SKU code.
	Scan(ctx context.Context, sessionID string, kind domain.Kind, code string, qty int) (*domain.Cart, error)
	SetQty(ctx context.Context, sessionID string, kind domain.Kind, productID uuid.UUID, qty int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, sessionID string, kind domain.Kind, productID uuid.UUID) (*domain.Cart, error)
	Clear(ctx context.Context, sessionID string, kind domain.Kind) error
	// Checkout commits the session's cart on behalf of operatorID, which is
	// empty for unauthenticated tills. The cart is cleared whenever a record
	// was written, including when the commit is partial.
	Checkout(ctx context.Context, sessionID, operatorID string, kind domain.Kind, discountPercent decimal.Decimal) (*domain.Record, error)
}

type cartService struct {
	carts    repository.CartStore
	products repository.ProductRepository
	checkout CheckoutService
	logger   *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(carts repository.CartStore, products repository.ProductRepository, checkout CheckoutService, logger *zap.Logger) CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cartService{
		carts:    carts,
		products: products,
		checkout: checkout,
		logger:   logger.Named("cart"),
	}
}

func (s *cartService) Get(ctx context.Context, sessionID string, kind domain.Kind) (*domain.Cart, error) {
	if !kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	return s.carts.Load(ctx, sessionID, kind)
}

func (s *cartService) AddProduct(ctx context.Context, sessionID string, kind domain.Kind, productID uuid.UUID, qty int) (*domain.Cart, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.add(ctx, sessionID, kind, product, qty)
}

func (s *cartService) Scan(ctx context.Context, sessionID string, kind domain.Kind, code string, qty int) (*domain.Cart, error) {
	product, err := s.products.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.add(ctx, sessionID, kind, product, qty)
}

func (s *cartService) add(ctx context.Context, sessionID string, kind domain.Kind, product *domain.Product, qty int) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, kind, func(cart *domain.Cart) {
		cart.AddLine(product, qty)
	})
}

func (s *cartService) SetQty(ctx context.Context, sessionID string, kind domain.Kind, productID uuid.UUID, qty int) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, kind, func(cart *domain.Cart) {
		cart.SetLineQty(productID, qty)
	})
}

func (s *cartService) RemoveLine(ctx context.Context, sessionID string, kind domain.Kind, productID uuid.UUID) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, kind, func(cart *domain.Cart) {
		cart.RemoveLine(productID)
	})
}

func (s *cartService) Clear(ctx context.Context, sessionID string, kind domain.Kind) error {
	if !kind.Valid() {
		return domain.ErrInvalidKind
	}
	return s.carts.Delete(ctx, sessionID, kind)
}

func (s *cartService) mutate(ctx context.Context, sessionID string, kind domain.Kind, fn func(*domain.Cart)) (*domain.Cart, error) {
	cart, err := s.Get(ctx, sessionID, kind)
	if err != nil {
		return nil, err
	}

	fn(cart)

	if err := s.carts.Save(ctx, sessionID, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) Checkout(ctx context.Context, sessionID, operatorID string, kind domain.Kind, discountPercent decimal.Decimal) (*domain.Record, error) {
	cart, err := s.Get(ctx, sessionID, kind)
	if err != nil {
		return nil, err
	}

	record, err := s.checkout.Commit(ctx, cart, discountPercent, operatorID)

	var partial *domain.PartialCommitError
	if err != nil && !errors.As(err, &partial) {
		return nil, err
	}

	if clearErr := s.carts.Delete(ctx, sessionID, kind); clearErr != nil {
		s.logger.Error("failed to clear cart after commit",
			zap.String("session_id", sessionID),
			zap.String("kind", string(kind)),
			zap.String("record_id", record.ID.String()),
			zap.Error(clearErr),
		)
	}

	return record, err
}
