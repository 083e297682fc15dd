package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is an operating cost deducted from profit in the daily report
type Expense struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Validate checks the expense fields
func (e *Expense) Validate() error {
	e.Description = strings.TrimSpace(e.Description)
	if e.Description == "" || !e.Amount.IsPositive() {
		return ErrInvalidExpense
	}
	return nil
}
