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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutService turns carts into committed records and drives their stock
// effect into the inventory ledger
type CheckoutService interface {
	// Commit persists the cart as a record, then applies one stock delta per
	// line. The cart itself is not modified; the caller clears it when the
	// record exists, including on *domain.PartialCommitError.
	Commit(ctx context.Context, cart *domain.Cart, discountPercent decimal.Decimal, operatorID string) (*domain.Record, error)
	// Reconcile re-applies the stock deltas a record is still missing, using
	// the same idempotency keys as the original commit.
	Reconcile(ctx context.Context, recordID uuid.UUID) (*domain.Record, error)
}

// CheckoutOptions configures a CheckoutService
type CheckoutOptions struct {
	Retry       RetryConfig
	StockPolicy domain.StockPolicy
	Publisher   EventPublisher
	Metrics     *metrics.LedgerMetrics
	Logger      *zap.Logger
	Now         func() time.Time
}

type checkoutService struct {
	records repository.RecordRepository
	ledger  repository.InventoryLedger
	stock   *stockApplier
	events  *eventEmitter
	retry   RetryConfig
	policy  domain.StockPolicy
	metrics *metrics.LedgerMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(records repository.RecordRepository, ledger repository.InventoryLedger, opts CheckoutOptions) CheckoutService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("checkout")

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	retry := opts.Retry.withDefaults()
	return &checkoutService{
		records: records,
		ledger:  ledger,
		stock: &stockApplier{
			ledger:  ledger,
			retry:   retry,
			metrics: opts.Metrics,
			logger:  logger,
		},
		events:  newEventEmitter(opts.Publisher, opts.Metrics, logger),
		retry:   retry,
		policy:  opts.StockPolicy,
		metrics: opts.Metrics,
		logger:  logger,
		now:     now,
	}
}

func (s *checkoutService) Commit(ctx context.Context, cart *domain.Cart, discountPercent decimal.Decimal, operatorID string) (*domain.Record, error) {
	started := s.now()

	record, err := domain.NewRecord(cart, discountPercent, operatorID, started)
	if err != nil {
		return nil, err
	}

	if s.policy == domain.StockPolicyReject {
		if err := s.preflight(ctx, record); err != nil {
			return nil, err
		}
	}

	// The record is the audit trail: it must exist before any stock moves.
	if err := retryStore(ctx, s.retry, func(ctx context.Context) error {
		return s.records.Create(ctx, record)
	}); err != nil {
		s.metrics.RecordCommit(string(record.Kind), metrics.OutcomeFailed, s.now().Sub(started))
		return nil, fmt.Errorf("failed to persist %s record: %w", record.Kind, err)
	}

	log := s.logger.With(
		zap.String("record_id", record.ID.String()),
		zap.String("kind", string(record.Kind)),
	)
	log.Info("record persisted",
		zap.String("total", record.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(record.Items)),
	)

	failures := s.stock.apply(ctx, record.Adjustments(domain.PhaseCommit), applyOptions{phase: domain.PhaseCommit})

	if len(failures) == 0 {
		record.StockStatus = domain.StockApplied
		s.saveStatus(ctx, log, record)
		s.metrics.RecordCommit(string(record.Kind), metrics.OutcomeApplied, s.now().Sub(started))
		s.events.emit(ctx, domain.EventRecordCommitted, record, s.now())
		log.Info("record committed")
		return record, nil
	}

	record.StockStatus = domain.StockPartial
	record.Unresolved = unresolvedIDs(failures)
	s.saveStatus(ctx, log, record)
	s.metrics.RecordCommit(string(record.Kind), metrics.OutcomePartial, s.now().Sub(started))
	s.events.emit(ctx, domain.EventRecordPartial, record, s.now())

	partial := &domain.PartialCommitError{RecordID: record.ID, Kind: record.Kind, Unresolved: failures}
	log.Error("record committed with unresolved stock adjustments", zap.Error(partial))
	return record, partial
}

// preflight is an advisory read under the reject policy. It turns away carts
// that are obviously short before a record is written; the conditional
// update in the ledger remains the authority.
func (s *checkoutService) preflight(ctx context.Context, record *domain.Record) error {
	if record.Kind.Direction() > 0 {
		return nil
	}

	var short []domain.LineFailure
	for _, adj := range record.Adjustments(domain.PhaseCommit) {
		qty, err := s.ledger.CurrentStock(ctx, adj.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			short = append(short, domain.NewLineFailure(adj, err))
			continue
		}
		if err != nil {
			return err
		}
		if s.policy.Rejects(qty + adj.Delta) {
			short = append(short, domain.NewLineFailure(adj,
				fmt.Errorf("%w: %d in stock", domain.ErrInsufficientStock, qty)))
		}
	}

	if len(short) > 0 {
		return &domain.InsufficientStockError{Lines: short}
	}
	return nil
}

// saveStatus persists the record's stock status. The stock itself has
// already moved, so a failure here is logged and left for Reconcile, which
// replays the same keys without moving stock twice.
func (s *checkoutService) saveStatus(ctx context.Context, log *zap.Logger, record *domain.Record) {
	err := retryStore(ctx, s.retry, func(ctx context.Context) error {
		return s.records.UpdateStockStatus(ctx, record.ID, record.StockStatus, record.Unresolved)
	})
	if err != nil {
		log.Error("failed to save record stock status; reconcile the record",
			zap.String("stock_status", string(record.StockStatus)),
			zap.Error(err),
		)
	}
}

func (s *checkoutService) Reconcile(ctx context.Context, recordID uuid.UUID) (*domain.Record, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if record.StockStatus == domain.StockApplied {
		return record, domain.ErrNothingToReconcile
	}
	if err := record.ValidateSnapshot(); err != nil {
		return nil, &domain.UncompensatableRecordError{RecordID: record.ID, Reason: err.Error()}
	}

	var adjs []domain.StockAdjustment
	for _, adj := range record.Adjustments(domain.PhaseCommit) {
		// A pending record may have stopped anywhere, so every line is replayed.
		if record.StockStatus == domain.StockPending || record.IsUnresolved(adj.ProductID) {
			adjs = append(adjs, adj)
		}
	}

	log := s.logger.With(
		zap.String("record_id", record.ID.String()),
		zap.String("kind", string(record.Kind)),
	)
	log.Info("reconciling record", zap.Int("lines", len(adjs)))

	failures := s.stock.apply(ctx, adjs, applyOptions{phase: domain.PhaseCommit, skipMissing: true})

	if len(failures) == 0 {
		record.StockStatus = domain.StockApplied
		record.Unresolved = nil
		if err := retryStore(ctx, s.retry, func(ctx context.Context) error {
			return s.records.UpdateStockStatus(ctx, record.ID, record.StockStatus, nil)
		}); err != nil {
			s.metrics.RecordReconcile(metrics.OutcomeFailed)
			return nil, fmt.Errorf("failed to mark record reconciled: %w", err)
		}
		s.metrics.RecordReconcile(metrics.OutcomeApplied)
		s.events.emit(ctx, domain.EventRecordReconciled, record, s.now())
		log.Info("record reconciled")
		return record, nil
	}

	record.StockStatus = domain.StockPartial
	record.Unresolved = unresolvedIDs(failures)
	s.saveStatus(ctx, log, record)
	s.metrics.RecordReconcile(metrics.OutcomePartial)

	partial := &domain.PartialCommitError{RecordID: record.ID, Kind: record.Kind, Unresolved: failures}
	log.Warn("record still has unresolved stock adjustments", zap.Error(partial))
	return record, partial
}
