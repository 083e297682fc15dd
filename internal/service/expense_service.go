package service

import (
	"context"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExpenseService records operating expenses
type ExpenseService interface {
	Create(ctx context.Context, description string, amount decimal.Decimal) (*domain.Expense, error)
	List(ctx context.Context, limit int) ([]*domain.Expense, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type expenseService struct {
	expenses repository.ExpenseRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewExpenseService creates a new instance of ExpenseService
func NewExpenseService(expenses repository.ExpenseRepository, logger *zap.Logger) ExpenseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &expenseService{
		expenses: expenses,
		logger:   logger.Named("expenses"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *expenseService) Create(ctx context.Context, description string, amount decimal.Decimal) (*domain.Expense, error) {
	expense := &domain.Expense{
		ID:          uuid.New(),
		Description: description,
		Amount:      amount,
		CreatedAt:   s.now(),
	}
	if err := expense.Validate(); err != nil {
		return nil, err
	}

	if err := s.expenses.Create(ctx, expense); err != nil {
		return nil, err
	}

	s.logger.Info("expense recorded",
		zap.String("expense_id", expense.ID.String()),
		zap.String("amount", expense.Amount.StringFixed(2)),
	)
	return expense, nil
}

func (s *expenseService) List(ctx context.Context, limit int) ([]*domain.Expense, error) {
	return s.expenses.List(ctx, limit)
}

func (s *expenseService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.expenses.Delete(ctx, id)
}
