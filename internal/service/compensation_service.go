package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/metrics"
	"pos-ledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompensationService reverses the stock effect of committed records
type CompensationService interface {
	// Compensate applies the inverse delta of every snapshot line. It is safe
	// to call again after a failure: each inverse delta carries a stable key.
	Compensate(ctx context.Context, record *domain.Record) error
	// Void compensates the record and deletes it once every inverse delta has
	// been applied. On any failure the record is kept.
	Void(ctx context.Context, recordID uuid.UUID) (*domain.Record, error)
}

// CompensationOptions configures a CompensationService
type CompensationOptions struct {
	Retry     RetryConfig
	Publisher EventPublisher
	Metrics   *metrics.LedgerMetrics
	Logger    *zap.Logger
	Now       func() time.Time
}

type compensationService struct {
	records repository.RecordRepository
	stock   *stockApplier
	events  *eventEmitter
	retry   RetryConfig
	metrics *metrics.LedgerMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewCompensationService creates a new instance of CompensationService
func NewCompensationService(records repository.RecordRepository, ledger repository.InventoryLedger, opts CompensationOptions) CompensationService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("compensation")

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	retry := opts.Retry.withDefaults()
	return &compensationService{
		records: records,
		stock: &stockApplier{
			ledger:  ledger,
			retry:   retry,
			metrics: opts.Metrics,
			logger:  logger,
		},
		events:  newEventEmitter(opts.Publisher, opts.Metrics, logger),
		retry:   retry,
		metrics: opts.Metrics,
		logger:  logger,
		now:     now,
	}
}

func (s *compensationService) Compensate(ctx context.Context, record *domain.Record) error {
	if record == nil {
		return &domain.UncompensatableRecordError{Reason: "record is missing"}
	}

	if err := record.ValidateSnapshot(); err != nil {
		s.metrics.RecordCompensation(metrics.OutcomeRejected)
		return &domain.UncompensatableRecordError{RecordID: record.ID, Reason: err.Error()}
	}

	// Reversing a record whose own deltas are not all in the ledger would
	// move stock that was never moved.
	if record.StockStatus != domain.StockApplied {
		s.metrics.RecordCompensation(metrics.OutcomeRejected)
		return &domain.UncompensatableRecordError{
			RecordID: record.ID,
			Reason:   fmt.Sprintf("stock status is %s; reconcile the record first", record.StockStatus),
		}
	}

	failures := s.stock.apply(ctx, record.Adjustments(domain.PhaseCompensate), applyOptions{
		phase:       domain.PhaseCompensate,
		skipMissing: true,
	})
	if len(failures) > 0 {
		s.metrics.RecordCompensation(metrics.OutcomeFailed)
		compErr := &domain.CompensationError{RecordID: record.ID, Failed: failures}
		s.logger.Error("compensation failed; record kept",
			zap.String("record_id", record.ID.String()),
			zap.Error(compErr),
		)
		return compErr
	}

	return nil
}

func (s *compensationService) Void(ctx context.Context, recordID uuid.UUID) (*domain.Record, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if err := s.Compensate(ctx, record); err != nil {
		return nil, err
	}

	err = retryStore(ctx, s.retry, func(ctx context.Context) error {
		return s.records.Delete(ctx, record.ID)
	})
	// A concurrent void already removed it after compensating with the same keys.
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		s.metrics.RecordCompensation(metrics.OutcomeFailed)
		return nil, fmt.Errorf("stock restored but failed to delete record %s: %w", record.ID, err)
	}

	s.metrics.RecordCompensation(metrics.OutcomeVoided)
	s.events.emit(ctx, domain.EventRecordVoided, record, s.now())
	s.logger.Info("record voided",
		zap.String("record_id", record.ID.String()),
		zap.String("kind", string(record.Kind)),
	)
	return record, nil
}
