package service

import (
	"context"
	"testing"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newCartFixture(t *testing.T) (*fixture, CartService) {
	f := newFixture(t, domain.StockPolicyAllow)
	carts := NewCartService(memory.NewCartStore(), f.catalog, f.checkout, zaptest.NewLogger(t))
	return f, carts
}

func TestCartService_AddMergesLines(t *testing.T) {
	f, carts := newCartFixture(t)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)

	_, err := carts.AddProduct(ctx, "op-1", domain.KindSale, product.ID, 1)
	require.NoError(t, err)
	cart, err := carts.AddProduct(ctx, "op-1", domain.KindSale, product.ID, 2)
	require.NoError(t, err)

	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Qty)

	stored, err := carts.Get(ctx, "op-1", domain.KindSale)
	require.NoError(t, err)
	assert.Equal(t, lines, stored.Lines())
}

func TestCartService_SaleAndPurchaseCartsAreIndependent(t *testing.T) {
	f, carts := newCartFixture(t)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)

	_, err := carts.AddProduct(ctx, "op-1", domain.KindSale, product.ID, 2)
	require.NoError(t, err)

	sale, err := carts.Get(ctx, "op-1", domain.KindSale)
	require.NoError(t, err)
	purchase, err := carts.Get(ctx, "op-1", domain.KindPurchase)
	require.NoError(t, err)
	other, err := carts.Get(ctx, "op-2", domain.KindSale)
	require.NoError(t, err)

	assert.True(t, sale.Subtotal().Equal(decimal.NewFromInt(1000)))
	assert.True(t, purchase.IsEmpty())
	assert.True(t, other.IsEmpty())
}

func TestCartService_ScanByCode(t *testing.T) {
	f, carts := newCartFixture(t)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)
	product.Code = "8991234567890"
	require.NoError(t, f.catalog.Update(ctx, product))

	cart, err := carts.Scan(ctx, "op-1", domain.KindPurchase, "8991234567890", 1)
	require.NoError(t, err)
	assert.True(t, cart.Subtotal().Equal(decimal.NewFromInt(300)))

	_, err = carts.Scan(ctx, "op-1", domain.KindPurchase, "unknown", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCartService_SetQtyAndRemove(t *testing.T) {
	f, carts := newCartFixture(t)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)

	_, err := carts.AddProduct(ctx, "op-1", domain.KindSale, product.ID, 4)
	require.NoError(t, err)

	cart, err := carts.SetQty(ctx, "op-1", domain.KindSale, product.ID, 0)
	require.NoError(t, err)
	line, ok := cart.Line(product.ID)
	require.True(t, ok)
	assert.Equal(t, 1, line.Qty)

	cart, err = carts.RemoveLine(ctx, "op-1", domain.KindSale, product.ID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	cart, err = carts.RemoveLine(ctx, "op-1", domain.KindSale, uuid.New())
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartService_CheckoutClearsCart(t *testing.T) {
	f, carts := newCartFixture(t)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)

	_, err := carts.AddProduct(ctx, "op-1", domain.KindSale, product.ID, 3)
	require.NoError(t, err)

	record, err := carts.Checkout(ctx, "op-1", "op-1", domain.KindSale, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, record.TotalAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "op-1", record.OperatorID)
	assert.Equal(t, 7, f.stock(t, product.ID))

	cart, err := carts.Get(ctx, "op-1", domain.KindSale)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartService_CheckoutRecordsOperatorNotSession(t *testing.T) {
	f, carts := newCartFixture(t)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)

	_, err := carts.AddProduct(ctx, "till-9", domain.KindSale, product.ID, 1)
	require.NoError(t, err)

	record, err := carts.Checkout(ctx, "till-9", "", domain.KindSale, decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, record.OperatorID)

	cart, err := carts.Get(ctx, "till-9", domain.KindSale)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartService_PartialCheckoutStillClearsCart(t *testing.T) {
	f, carts := newCartFixture(t)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)
	f.ledger.failFor(product.ID, -1)

	_, err := carts.AddProduct(ctx, "op-1", domain.KindSale, product.ID, 3)
	require.NoError(t, err)

	record, err := carts.Checkout(ctx, "op-1", "op-1", domain.KindSale, decimal.Zero)
	var partial *domain.PartialCommitError
	require.ErrorAs(t, err, &partial)
	require.NotNil(t, record)

	cart, err := carts.Get(ctx, "op-1", domain.KindSale)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty(), "a written record must not be committed twice from the same cart")
}

func TestCartService_FailedCheckoutKeepsCart(t *testing.T) {
	f := newFixture(t, domain.StockPolicyReject)
	carts := NewCartService(memory.NewCartStore(), f.catalog, f.checkout, nil)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 1)

	_, err := carts.AddProduct(ctx, "op-1", domain.KindSale, product.ID, 3)
	require.NoError(t, err)

	_, err = carts.Checkout(ctx, "op-1", "op-1", domain.KindSale, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	cart, err := carts.Get(ctx, "op-1", domain.KindSale)
	require.NoError(t, err)
	assert.False(t, cart.IsEmpty())
}

func TestCartService_EmptyCheckout(t *testing.T) {
	_, carts := newCartFixture(t)

	_, err := carts.Checkout(context.Background(), "op-1", "op-1", domain.KindSale, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCartService_InvalidKind(t *testing.T) {
	_, carts := newCartFixture(t)

	_, err := carts.Get(context.Background(), "op-1", domain.Kind("refund"))
	assert.ErrorIs(t, err, domain.ErrInvalidKind)
}
