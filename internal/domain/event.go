package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a record lifecycle event
type EventType string

const (
	EventRecordCommitted  EventType = "record.committed"
	EventRecordPartial    EventType = "record.partial"
	EventRecordReconciled EventType = "record.reconciled"
	EventRecordVoided     EventType = "record.voided"
)

// RecordEvent is published after a record changes state. It carries the
// snapshot so consumers do not need to read the store.
type RecordEvent struct {
	EventType   EventType       `json:"event_type"`
	RecordID    uuid.UUID       `json:"record_id"`
	Kind        Kind            `json:"kind"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	StockStatus StockStatus     `json:"stock_status"`
	Items       []CartLine      `json:"items"`
	Unresolved  []uuid.UUID     `json:"unresolved,omitempty"`
	OperatorID  string          `json:"operator_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewRecordEvent builds an event describing record at time now
func NewRecordEvent(eventType EventType, record *Record, now time.Time) RecordEvent {
	return RecordEvent{
		EventType:   eventType,
		RecordID:    record.ID,
		Kind:        record.Kind,
		TotalAmount: record.TotalAmount,
		StockStatus: record.StockStatus,
		Items:       record.Items,
		Unresolved:  record.Unresolved,
		OperatorID:  record.OperatorID,
		Timestamp:   now.UTC(),
	}
}
