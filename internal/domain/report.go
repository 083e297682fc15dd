package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordTotals aggregates committed records of one kind over a period
type RecordTotals struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
	Profit decimal.Decimal `json:"profit"`
}

// DailyReport summarizes one calendar day of trading
type DailyReport struct {
	Date          string          `json:"date"`
	SalesCount    int             `json:"sales_count"`
	SalesTotal    decimal.Decimal `json:"sales_total"`
	SalesProfit   decimal.Decimal `json:"sales_profit"`
	PurchaseCount int             `json:"purchase_count"`
	PurchaseTotal decimal.Decimal `json:"purchase_total"`
	ExpenseTotal  decimal.Decimal `json:"expense_total"`
	NetProfit     decimal.Decimal `json:"net_profit"`
}

// NewDailyReport combines the day's totals. Net profit is sales profit minus
// expenses; purchases move stock, not profit.
func NewDailyReport(day time.Time, sales, purchases RecordTotals, expenses decimal.Decimal) DailyReport {
	return DailyReport{
		Date:          day.Format("2006-01-02"),
		SalesCount:    sales.Count,
		SalesTotal:    sales.Amount,
		SalesProfit:   sales.Profit,
		PurchaseCount: purchases.Count,
		PurchaseTotal: purchases.Amount,
		ExpenseTotal:  expenses,
		NetProfit:     sales.Profit.Sub(expenses),
	}
}

// DayBounds returns the [start, end) interval of the day containing t in loc
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
