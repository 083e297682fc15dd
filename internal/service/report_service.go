package service

import (
	"context"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReportService builds trading summaries
type ReportService interface {
	// Daily summarizes the calendar day containing day in the report timezone.
	Daily(ctx context.Context, day time.Time) (domain.DailyReport, error)
}

type reportService struct {
	records  repository.RecordRepository
	expenses repository.ExpenseRepository
	location *time.Location
}

// NewReportService creates a new instance of ReportService. A nil location
// means UTC.
func NewReportService(records repository.RecordRepository, expenses repository.ExpenseRepository, location *time.Location) ReportService {
	if location == nil {
		location = time.UTC
	}
	return &reportService{records: records, expenses: expenses, location: location}
}

func (s *reportService) Daily(ctx context.Context, day time.Time) (domain.DailyReport, error) {
	from, to := domain.DayBounds(day, s.location)

	var (
		sales, purchases domain.RecordTotals
		expenses         decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = s.records.Totals(gctx, domain.KindSale, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		purchases, err = s.records.Totals(gctx, domain.KindPurchase, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.Total(gctx, from, to)
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.DailyReport{}, err
	}

	return domain.NewDailyReport(from, sales, purchases, expenses), nil
}
