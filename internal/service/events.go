package service

import (
	"context"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/metrics"

	"go.uber.org/zap"
)

// EventPublisher delivers record lifecycle events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event domain.RecordEvent) error
}

// NoopPublisher discards every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.RecordEvent) error { return nil }

// eventEmitter publishes best-effort: a failed publish is logged and counted
// but never changes the outcome of the operation that produced the event
type eventEmitter struct {
	publisher EventPublisher
	metrics   *metrics.LedgerMetrics
	logger    *zap.Logger
	timeout   time.Duration
}

func newEventEmitter(publisher EventPublisher, m *metrics.LedgerMetrics, logger *zap.Logger) *eventEmitter {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &eventEmitter{publisher: publisher, metrics: m, logger: logger, timeout: 5 * time.Second}
}

func (e *eventEmitter) emit(ctx context.Context, eventType domain.EventType, record *domain.Record, now time.Time) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.publisher.Publish(pubCtx, domain.NewRecordEvent(eventType, record, now)); err != nil {
		e.metrics.RecordEvent(string(eventType), metrics.OutcomeFailed)
		e.logger.Error("failed to publish record event",
			zap.String("event_type", string(eventType)),
			zap.String("record_id", record.ID.String()),
			zap.Error(err),
		)
		return
	}
	e.metrics.RecordEvent(string(eventType), metrics.OutcomeApplied)
}
