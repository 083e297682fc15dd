package service

import (
	"context"
	"testing"
	"time"

	"pos-ledger/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoid_RestoresStockAndDeletesRecord(t *testing.T) {
	f := newFixture(t, domain.StockPolicyAllow)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)

	record, err := f.checkout.Commit(ctx, cartOf(domain.KindSale, product, 3), decimal.Zero, "")
	require.NoError(t, err)
	require.Equal(t, 7, f.stock(t, product.ID))

	voided, err := f.compensation.Void(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, voided.ID)
	assert.Equal(t, 10, f.stock(t, product.ID))

	_, err = f.records.FindByID(ctx, record.ID)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.Equal(t, []domain.EventType{domain.EventRecordCommitted, domain.EventRecordVoided}, f.publisher.types())
}

func TestVoid_PurchaseDecrementsStock(t *testing.T) {
	f := newFixture(t, domain.StockPolicyAllow)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)

	record, err := f.checkout.Commit(ctx, cartOf(domain.KindPurchase, product, 4), decimal.Zero, "")
	require.NoError(t, err)
	require.Equal(t, 14, f.stock(t, product.ID))

	_, err = f.compensation.Void(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, product.ID))
}

func TestVoid_MissingSnapshotBlocksDeletion(t *testing.T) {
	f := newFixture(t, domain.StockPolicyAllow)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)

	record := &domain.Record{
		ID:          uuid.New(),
		Kind:        domain.KindSale,
		TotalAmount: decimal.NewFromInt(1500),
		StockStatus: domain.StockApplied,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.records.Create(ctx, record))

	_, err := f.compensation.Void(ctx, record.ID)

	var uncompensatable *domain.UncompensatableRecordError
	require.ErrorAs(t, err, &uncompensatable)
	assert.Equal(t, record.ID, uncompensatable.RecordID)

	_, err = f.records.FindByID(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, product.ID))
}

func TestCompensate_MalformedSnapshots(t *testing.T) {
	f := newFixture(t, domain.StockPolicyAllow)
	productID := uuid.New()

	tests := []struct {
		name   string
		record *domain.Record
	}{
		{"nil record", nil},
		{"unknown kind", &domain.Record{ID: uuid.New(), Kind: "refund", StockStatus: domain.StockApplied,
			Items: []domain.CartLine{{ProductID: productID, Qty: 1}}}},
		{"zero quantity", &domain.Record{ID: uuid.New(), Kind: domain.KindSale, StockStatus: domain.StockApplied,
			Items: []domain.CartLine{{ProductID: productID, Qty: 0}}}},
		{"missing product id", &domain.Record{ID: uuid.New(), Kind: domain.KindSale, StockStatus: domain.StockApplied,
			Items: []domain.CartLine{{Qty: 2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.compensation.Compensate(context.Background(), tt.record)

			var uncompensatable *domain.UncompensatableRecordError
			assert.ErrorAs(t, err, &uncompensatable)
		})
	}
}

func TestVoid_PartialRecordMustBeReconciledFirst(t *testing.T) {
	f := newFixture(t, domain.StockPolicyAllow)
	ctx := context.Background()
	product := f.seed(t, "Widget", 500, 300, 10)
	f.ledger.failFor(product.ID, -1)

	record, err := f.checkout.Commit(ctx, cartOf(domain.KindSale, product, 3), decimal.Zero, "")
	require.Error(t, err)

	f.ledger.heal()

	_, err = f.compensation.Void(ctx, record.ID)
	var uncompensatable *domain.UncompensatableRecordError
	require.ErrorAs(t, err, &uncompensatable)
	assert.Equal(t, 10, f.stock(t, product.ID))

	_, err = f.checkout.Reconcile(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, 7, f.stock(t, product.ID))

	_, err = f.compensation.Void(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, product.ID))
}

func TestVoid_FailureKeepsRecordAndRetryIsIdempotent(t *testing.T) {
	f := newFixture(t, domain.StockPolicyAllow)
	ctx := context.Background()
	good := f.seed(t, "Widget", 500, 300, 10)
	bad := f.seed(t, "Gadget", 200, 100, 10)

	record, err := f.checkout.Commit(ctx, cartOf(domain.KindSale, good, 2, bad, 4), decimal.Zero, "")
	require.NoError(t, err)

	f.ledger.failFor(bad.ID, -1)

	_, err = f.compensation.Void(ctx, record.ID)
	var compErr *domain.CompensationError
	require.ErrorAs(t, err, &compErr)
	require.Len(t, compErr.Failed, 1)
	assert.Equal(t, bad.ID, compErr.Failed[0].ProductID)
	assert.Equal(t, 4, compErr.Failed[0].Delta)

	_, err = f.records.FindByID(ctx, record.ID)
	require.NoError(t, err, "record must survive a failed compensation")
	assert.Equal(t, 10, f.stock(t, good.ID))
	assert.Equal(t, 6, f.stock(t, bad.ID))

	f.ledger.heal()

	_, err = f.compensation.Void(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, good.ID), "inverse delta applied once across retries")
	assert.Equal(t, 10, f.stock(t, bad.ID))
}

func TestVoid_SkipsDeletedProducts(t *testing.T) {
	f := newFixture(t, domain.StockPolicyAllow)
	ctx := context.Background()
	kept := f.seed(t, "Widget", 500, 300, 10)
	removed := f.seed(t, "Gadget", 200, 100, 10)

	record, err := f.checkout.Commit(ctx, cartOf(domain.KindSale, kept, 1, removed, 1), decimal.Zero, "")
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete(ctx, removed.ID))

	_, err = f.compensation.Void(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, kept.ID))
}

func TestVoid_UnknownRecord(t *testing.T) {
	f := newFixture(t, domain.StockPolicyAllow)

	_, err := f.compensation.Void(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

type ledgerOp struct {
	Void    bool
	Kind    domain.Kind
	Product int
	Qty     int
	Target  int
}

func genLedgerOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 3),
		gen.Bool(),
		gen.IntRange(0, 2),
		gen.IntRange(1, 5),
		gen.IntRange(0, 20),
	).Map(func(values []interface{}) ledgerOp {
		kind := domain.KindSale
		if values[1].(bool) {
			kind = domain.KindPurchase
		}
		return ledgerOp{
			Void:    values[0].(int) == 0,
			Kind:    kind,
			Product: values[2].(int),
			Qty:     values[3].(int),
			Target:  values[4].(int),
		}
	})
}

// Stock always equals the opening balance plus live purchases minus live sales,
// whatever mix of commits and voids ran, including through lost acks.
func TestProperty_StockMatchesLiveRecords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stock = initial + live purchases - live sales", prop.ForAll(
		func(ops []ledgerOp) bool {
			f := newFixture(t, domain.StockPolicyAllow)
			ctx := context.Background()

			const initial = 50
			products := []*domain.Product{
				f.seed(t, "A", 10, 5, initial),
				f.seed(t, "B", 20, 15, initial),
				f.seed(t, "C", 30, 10, initial),
			}
			f.ledger.loseAcks(products[1].ID, 1)

			var live []uuid.UUID
			for _, op := range ops {
				if op.Void && len(live) > 0 {
					i := op.Target % len(live)
					if _, err := f.compensation.Void(ctx, live[i]); err != nil {
						t.Logf("FAIL: void: %v", err)
						return false
					}
					live = append(live[:i], live[i+1:]...)
					continue
				}

				record, err := f.checkout.Commit(ctx, cartOf(op.Kind, products[op.Product], op.Qty), decimal.Zero, "")
				if err != nil {
					t.Logf("FAIL: commit: %v", err)
					return false
				}
				live = append(live, record.ID)
			}

			records, err := f.records.List(ctx, "", 500)
			if err != nil {
				return false
			}
			expected := map[uuid.UUID]int{}
			for _, p := range products {
				expected[p.ID] = initial
			}
			for _, r := range records {
				for _, l := range r.Items {
					expected[l.ProductID] += r.Kind.Direction() * l.Qty
				}
			}

			for _, p := range products {
				if got := f.stock(t, p.ID); got != expected[p.ID] {
					t.Logf("FAIL: product %s stock %d, expected %d", p.Name, got, expected[p.ID])
					return false
				}
			}
			return true
		},
		gen.SliceOfN(25, genLedgerOp()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Committing and then voiding any cart leaves stock where it started.
func TestProperty_CommitVoidRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("void undoes commit", prop.ForAll(
		func(qtyA, qtyB int, purchase bool) bool {
			f := newFixture(t, domain.StockPolicyAllow)
			ctx := context.Background()
			a := f.seed(t, "A", 10, 5, 7)
			b := f.seed(t, "B", 20, 15, 3)

			kind := domain.KindSale
			if purchase {
				kind = domain.KindPurchase
			}

			record, err := f.checkout.Commit(ctx, cartOf(kind, a, qtyA, b, qtyB), decimal.Zero, "")
			if err != nil {
				return false
			}
			if _, err := f.compensation.Void(ctx, record.ID); err != nil {
				return false
			}

			return f.stock(t, a.ID) == 7 && f.stock(t, b.ID) == 3
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 20),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
