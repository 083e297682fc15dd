package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"
	"pos-ledger/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addRecord(t *testing.T, records repository.RecordRepository, kind domain.Kind, total, profit int64, at time.Time) {
	t.Helper()
	require.NoError(t, records.Create(context.Background(), &domain.Record{
		ID:          uuid.New(),
		Kind:        kind,
		TotalAmount: decimal.NewFromInt(total),
		Profit:      decimal.NewFromInt(profit),
		Items:       []domain.CartLine{{ProductID: uuid.New(), Name: "x", Qty: 1}},
		StockStatus: domain.StockApplied,
		CreatedAt:   at,
	}))
}

func TestReportService_Daily(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordRepository()
	expenses := memory.NewExpenseRepository()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	addRecord(t, records, domain.KindSale, 1500, 600, day.Add(9*time.Hour))
	addRecord(t, records, domain.KindSale, 800, 200, day.Add(17*time.Hour))
	addRecord(t, records, domain.KindPurchase, 3000, 0, day.Add(10*time.Hour))
	// Outside the day.
	addRecord(t, records, domain.KindSale, 999, 999, day.Add(-time.Minute))
	addRecord(t, records, domain.KindSale, 999, 999, day.Add(24*time.Hour))

	require.NoError(t, expenses.Create(ctx, &domain.Expense{
		ID: uuid.New(), Description: "Electricity", Amount: decimal.NewFromInt(150), CreatedAt: day.Add(12 * time.Hour),
	}))

	svc := NewReportService(records, expenses, time.UTC)
	report, err := svc.Daily(ctx, day.Add(15*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "2026-03-14", report.Date)
	assert.Equal(t, 2, report.SalesCount)
	assert.True(t, report.SalesTotal.Equal(decimal.NewFromInt(2300)))
	assert.True(t, report.SalesProfit.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, 1, report.PurchaseCount)
	assert.True(t, report.PurchaseTotal.Equal(decimal.NewFromInt(3000)))
	assert.True(t, report.ExpenseTotal.Equal(decimal.NewFromInt(150)))
	assert.True(t, report.NetProfit.Equal(decimal.NewFromInt(650)))
}

func TestReportService_UsesReportTimezone(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordRepository()
	jakarta := time.FixedZone("WIB", 7*60*60)

	// 20:00 UTC on the 13th is 03:00 on the 14th in UTC+7.
	addRecord(t, records, domain.KindSale, 100, 40, time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC))

	svc := NewReportService(records, memory.NewExpenseRepository(), jakarta)
	report, err := svc.Daily(ctx, time.Date(2026, 3, 14, 12, 0, 0, 0, jakarta))
	require.NoError(t, err)

	assert.Equal(t, "2026-03-14", report.Date)
	assert.Equal(t, 1, report.SalesCount)
}

type failingExpenses struct {
	repository.ExpenseRepository
}

func (failingExpenses) Total(context.Context, time.Time, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, domain.Unavailable("total expenses", errors.New("timeout"))
}

func TestReportService_PropagatesStoreErrors(t *testing.T) {
	svc := NewReportService(memory.NewRecordRepository(), failingExpenses{}, nil)

	_, err := svc.Daily(context.Background(), time.Now())
	assert.True(t, domain.IsTransient(err))
}

func TestExpenseService(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(memory.NewExpenseRepository(), nil)

	expense, err := svc.Create(ctx, "  Rent ", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "Rent", expense.Description)

	_, err = svc.Create(ctx, "Free lunch", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidExpense)

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, expense.ID))
	assert.ErrorIs(t, svc.Delete(ctx, expense.ID), domain.ErrExpenseNotFound)
}

func TestRecordService_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordRepository()
	now := time.Now().UTC()

	addRecord(t, records, domain.KindSale, 1, 0, now.Add(-2*time.Hour))
	addRecord(t, records, domain.KindSale, 2, 0, now)
	addRecord(t, records, domain.KindPurchase, 3, 0, now.Add(-time.Hour))

	svc := NewRecordService(records)

	sales, err := svc.List(ctx, domain.KindSale, 10)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.True(t, sales[0].TotalAmount.Equal(decimal.NewFromInt(2)))

	all, err := svc.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.List(ctx, domain.Kind("refund"), 10)
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}
