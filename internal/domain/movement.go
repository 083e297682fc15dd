package domain

import (
	"time"

	"github.com/google/uuid"
)

// StockMovement is the audit row the ledger keeps for every applied delta
type StockMovement struct {
	Key           string    `json:"key"`
	ProductID     uuid.UUID `json:"product_id"`
	Delta         int       `json:"delta"`
	QuantityAfter int       `json:"quantity_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// ResyncKey derives a unique key for an absolute stock resynchronisation
func ResyncKey(productID uuid.UUID) string {
	return "resync:" + productID.String() + ":" + uuid.NewString()
}

// StockPolicy decides what the ledger does with a delta that would take a
// product below zero
type StockPolicy string

const (
	// StockPolicyAllow applies the delta; the oversell is logged and counted.
	StockPolicyAllow StockPolicy = "allow"
	// StockPolicyReject refuses the delta with ErrInsufficientStock.
	StockPolicyReject StockPolicy = "reject"
)

// Rejects reports whether a resulting quantity is refused under the policy
func (p StockPolicy) Rejects(quantityAfter int) bool {
	return p == StockPolicyReject && quantityAfter < 0
}
