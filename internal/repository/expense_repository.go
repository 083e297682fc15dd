package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pos-ledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseRepository defines the interface for expense data access
type ExpenseRepository interface {
	Create(ctx context.Context, expense *domain.Expense) error
	List(ctx context.Context, limit int) ([]*domain.Expense, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Total sums expenses created in [from, to).
	Total(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

type expenseRepository struct {
	db *sql.DB
}

// NewExpenseRepository creates a new instance of ExpenseRepository
func NewExpenseRepository(db *sql.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(ctx context.Context, expense *domain.Expense) error {
	query := `
		INSERT INTO expenses (id, description, amount, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		expense.ID,
		expense.Description,
		expense.Amount,
		expense.CreatedAt,
	)
	if err != nil {
		return storeError("create expense", err)
	}

	return nil
}

// List retrieves expenses newest first
func (r *expenseRepository) List(ctx context.Context, limit int) ([]*domain.Expense, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, description, amount, created_at
		FROM expenses
		ORDER BY created_at DESC, id
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, storeError("list expenses", err)
	}
	defer rows.Close()

	expenses := []*domain.Expense{}
	for rows.Next() {
		expense := &domain.Expense{}
		err := rows.Scan(
			&expense.ID,
			&expense.Description,
			&expense.Amount,
			&expense.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	if err = rows.Err(); err != nil {
		return nil, storeError("iterate expenses", err)
	}

	return expenses, nil
}

func (r *expenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return storeError("delete expense", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrExpenseNotFound
	}

	return nil
}

func (r *expenseRepository) Total(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE created_at >= $1 AND created_at < $2
	`

	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, from, to).Scan(&total); err != nil {
		return decimal.Zero, storeError("total expenses", err)
	}

	return total, nil
}
