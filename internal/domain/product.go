package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable item in the catalog
type Product struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Code          string          `json:"code,omitempty" db:"code"`
	SalePrice     decimal.Decimal `json:"sale_price" db:"sale_price"`
	CostPrice     decimal.Decimal `json:"cost_price" db:"cost_price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Normalize trims user supplied text fields in place
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
}

// Validate checks the catalog attributes of a product. Stock is not validated
// here: it is owned by the inventory ledger.
func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrProductNameRequired
	}
	if p.SalePrice.IsNegative() || p.CostPrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}
