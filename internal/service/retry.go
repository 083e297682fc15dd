package service

import (
	"context"
	"errors"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/metrics"
	"pos-ledger/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RetryConfig bounds how hard the services push stock adjustments through
// transient store failures
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// CallTimeout caps a single ledger call.
	CallTimeout time.Duration
}

// DefaultRetryConfig returns the configuration used when none is supplied
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		CallTimeout:    5 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts < 1 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

func (c RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.MaxInterval = c.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1)), ctx)
}

// stockApplier pushes a batch of keyed adjustments through the ledger with a
// bounded retry. Lines that fail permanently are not retried; lines that fail
// transiently are retried until the attempts run out.
type stockApplier struct {
	ledger  repository.InventoryLedger
	retry   RetryConfig
	metrics *metrics.LedgerMetrics
	logger  *zap.Logger
}

type applyOptions struct {
	phase domain.Phase
	// skipMissing treats a deleted product as nothing left to adjust.
	skipMissing bool
}

// apply returns the lines that could not be applied. The batch runs on a
// context detached from the caller's cancellation: once a record exists its
// stock effect is driven to completion or to an explicit failure.
func (a *stockApplier) apply(ctx context.Context, adjs []domain.StockAdjustment, opts applyOptions) []domain.LineFailure {
	stockCtx := context.WithoutCancel(ctx)
	phase := string(opts.phase)

	pending := adjs
	lastErr := make(map[string]error, len(adjs))
	var permanent []domain.LineFailure

	operation := func() error {
		var retryable []domain.StockAdjustment
		var errs error

		for _, adj := range pending {
			qty, err := a.adjust(stockCtx, adj)
			switch {
			case err == nil:
				delete(lastErr, adj.Key)
				a.metrics.RecordAdjustment(phase, metrics.OutcomeApplied)
				if qty < 0 {
					a.metrics.RecordNegativeStock()
					a.logger.Warn("stock went negative",
						zap.String("product_id", adj.ProductID.String()),
						zap.String("product_name", adj.ProductName),
						zap.Int("delta", adj.Delta),
						zap.Int("quantity", qty),
					)
				}
			case opts.skipMissing && errors.Is(err, domain.ErrProductNotFound):
				delete(lastErr, adj.Key)
				a.metrics.RecordAdjustment(phase, metrics.OutcomeSkipped)
				a.logger.Warn("product no longer exists, skipping stock adjustment",
					zap.String("key", adj.Key),
					zap.String("product_id", adj.ProductID.String()),
				)
			case domain.IsTransient(err):
				lastErr[adj.Key] = err
				retryable = append(retryable, adj)
				errs = multierr.Append(errs, err)
			default:
				delete(lastErr, adj.Key)
				outcome := metrics.OutcomeFailed
				if errors.Is(err, domain.ErrInsufficientStock) {
					outcome = metrics.OutcomeRejected
				}
				a.metrics.RecordAdjustment(phase, outcome)
				permanent = append(permanent, domain.NewLineFailure(adj, err))
			}
		}

		pending = retryable
		return errs
	}

	notify := func(err error, wait time.Duration) {
		a.metrics.RecordAdjustmentRetry()
		a.logger.Warn("stock adjustments failed, retrying",
			zap.String("phase", phase),
			zap.Int("remaining", len(pending)),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, a.retry.backOff(stockCtx), notify); err != nil {
		a.logger.Error("stock adjustments exhausted retries",
			zap.String("phase", phase),
			zap.Int("unresolved", len(pending)),
			zap.Error(err),
		)
	}

	failures := permanent
	for _, adj := range pending {
		a.metrics.RecordAdjustment(phase, metrics.OutcomeFailed)
		failures = append(failures, domain.NewLineFailure(adj, lastErr[adj.Key]))
	}
	return failures
}

func (a *stockApplier) adjust(ctx context.Context, adj domain.StockAdjustment) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.retry.CallTimeout)
	defer cancel()

	qty, err := a.ledger.AdjustStock(callCtx, adj)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !domain.IsTransient(err) {
		err = domain.Unavailable("adjust stock", err)
	}
	return qty, err
}

// retryStore runs a single store write with the same bounded retry as the
// stock adjustments, retrying only transient failures
func retryStore(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	storeCtx := context.WithoutCancel(ctx)
	return backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(storeCtx, cfg.CallTimeout)
		defer cancel()

		err := fn(callCtx)
		if err != nil && !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, cfg.backOff(storeCtx))
}

func unresolvedIDs(failures []domain.LineFailure) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.ProductID)
	}
	return ids
}
