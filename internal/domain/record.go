package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockStatus tracks how much of a record's inventory effect has been applied
type StockStatus string

const (
	// StockPending is set when the record is first written, before any delta.
	StockPending StockStatus = "pending"
	// StockApplied means every line's delta reached the ledger.
	StockApplied StockStatus = "applied"
	// StockPartial means retries were exhausted with lines still unresolved.
	StockPartial StockStatus = "partial"
)

// Phase names which side of a record's lifecycle a stock adjustment belongs to
type Phase string

const (
	PhaseCommit     Phase = "commit"
	PhaseCompensate Phase = "compensate"
)

// Record is an immutable committed sale (order) or purchase receipt. Items is
// a verbatim copy of the committed cart lines and is the only input used to
// reverse the record's inventory effect.
type Record struct {
	ID              uuid.UUID       `json:"id"`
	Kind            Kind            `json:"kind"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Profit          decimal.Decimal `json:"profit"`
	Items           []CartLine      `json:"items"`
	Summary         string          `json:"summary"`
	OperatorID      string          `json:"operator_id,omitempty"`
	StockStatus     StockStatus     `json:"stock_status"`
	Unresolved      []uuid.UUID     `json:"unresolved,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewRecord snapshots a cart into a pending record. Totals are computed after
// the discount, and sale profit is derived from the discounted total.
func NewRecord(cart *Cart, discountPercent decimal.Decimal, operatorID string, now time.Time) (*Record, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	discount := ClampDiscount(discountPercent)
	total := cart.Total(discount)

	profit := decimal.Zero
	if cart.Kind() == KindSale {
		profit = total.Sub(cart.Cost())
	}

	items := cart.Lines()
	return &Record{
		ID:              uuid.New(),
		Kind:            cart.Kind(),
		TotalAmount:     total,
		DiscountPercent: discount,
		Profit:          profit,
		Items:           items,
		Summary:         Summarize(items),
		OperatorID:      operatorID,
		StockStatus:     StockPending,
		CreatedAt:       now.UTC(),
	}, nil
}

// Summarize renders lines as "name xqty" joined by commas
func Summarize(lines []CartLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s x%d", l.Name, l.Qty))
	}
	return strings.Join(parts, ", ")
}

// ValidateSnapshot checks that the stored items are usable for compensation
func (r *Record) ValidateSnapshot() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("items snapshot is empty")
	}
	seen := make(map[uuid.UUID]struct{}, len(r.Items))
	for i, l := range r.Items {
		if l.ProductID == uuid.Nil {
			return fmt.Errorf("line %d has no product id", i)
		}
		if l.Qty < 1 {
			return fmt.Errorf("line %d has invalid quantity %d", i, l.Qty)
		}
		if _, dup := seen[l.ProductID]; dup {
			return fmt.Errorf("product %s appears more than once", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

// Adjustments returns one keyed stock delta per snapshot line for the given
// phase. Commit deltas follow the kind's direction, compensation reverses it.
func (r *Record) Adjustments(phase Phase) []StockAdjustment {
	sign := r.Kind.Direction()
	if phase == PhaseCompensate {
		sign = -sign
	}
	adjs := make([]StockAdjustment, 0, len(r.Items))
	for _, l := range r.Items {
		adjs = append(adjs, StockAdjustment{
			Key:         AdjustmentKey(r.ID, l.ProductID, phase),
			ProductID:   l.ProductID,
			ProductName: l.Name,
			Delta:       sign * l.Qty,
		})
	}
	return adjs
}

// IsUnresolved reports whether productID is still waiting for its commit delta
func (r *Record) IsUnresolved(productID uuid.UUID) bool {
	for _, id := range r.Unresolved {
		if id == productID {
			return true
		}
	}
	return false
}

// StockAdjustment is a signed change to one product's stock counter. Key is an
// idempotency key: the ledger applies each key at most once.
type StockAdjustment struct {
	Key         string    `json:"key"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Delta       int       `json:"delta"`
}

// AdjustmentKey derives the idempotency key of a record line for a phase
func AdjustmentKey(recordID, productID uuid.UUID, phase Phase) string {
	return fmt.Sprintf("%s:%s:%s", recordID, productID, phase)
}
