package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInvalidKind         = errors.New("kind must be sale or purchase")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductCodeTaken    = errors.New("product code already in use")
	ErrProductNameRequired = errors.New("product name is required")
	ErrNegativePrice       = errors.New("prices must be non-negative")
	ErrNegativeStock       = errors.New("stock quantity must be non-negative")
	ErrRecordNotFound      = errors.New("record not found")
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrInvalidExpense      = errors.New("expense needs a description and a positive amount")
	// ErrInsufficientStock is returned by the ledger under the reject policy
	// when a delta would drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNothingToReconcile is returned when a record has no unresolved lines.
	ErrNothingToReconcile = errors.New("record has no unresolved stock adjustments")
)

// LineFailure names a stock adjustment that could not be applied
type LineFailure struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Err       error     `json:"-"`
}

// NewLineFailure records that adj failed with err
func NewLineFailure(adj StockAdjustment, err error) LineFailure {
	return LineFailure{
		ProductID: adj.ProductID,
		Name:      adj.ProductName,
		Delta:     adj.Delta,
		Reason:    err.Error(),
		Err:       err,
	}
}

func describe(failures []LineFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s (%s) delta %+d", f.ProductID, f.Name, f.Delta))
	}
	return strings.Join(parts, "; ")
}

func combine(failures []LineFailure) error {
	var err error
	for _, f := range failures {
		err = multierr.Append(err, f.Err)
	}
	return err
}

// PartialCommitError is returned when a record was persisted but some of its
// stock deltas could not be applied after retrying. The record stays in the
// store as the audit trail for reconciliation.
type PartialCommitError struct {
	RecordID   uuid.UUID
	Kind       Kind
	Unresolved []LineFailure
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("%s record %s committed with unresolved stock adjustments: %s",
		e.Kind, e.RecordID, describe(e.Unresolved))
}

func (e *PartialCommitError) Unwrap() []error {
	return multierr.Errors(combine(e.Unresolved))
}

// UncompensatableRecordError blocks deletion of a record whose inventory
// effect cannot be reversed from its stored snapshot.
type UncompensatableRecordError struct {
	RecordID uuid.UUID
	Reason   string
}

func (e *UncompensatableRecordError) Error() string {
	return fmt.Sprintf("record %s cannot be compensated: %s", e.RecordID, e.Reason)
}

// CompensationError is returned when one or more inverse deltas failed. The
// record has not been deleted.
type CompensationError struct {
	RecordID uuid.UUID
	Failed   []LineFailure
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation of record %s failed: %s", e.RecordID, describe(e.Failed))
}

func (e *CompensationError) Unwrap() []error {
	return multierr.Errors(combine(e.Failed))
}

// StoreUnavailableError marks a transient failure talking to the store
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a transient store failure
func Unavailable(op string, err error) error {
	return &StoreUnavailableError{Op: op, Err: err}
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	var unavailable *StoreUnavailableError
	return errors.As(err, &unavailable)
}

// InsufficientStockError lists the sale lines a reject-policy pre-flight
// check found short. Nothing was written.
type InsufficientStockError struct {
	Lines []LineFailure
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %s", describe(e.Lines))
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
