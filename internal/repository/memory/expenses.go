package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var _ repository.ExpenseRepository = (*expenseRepository)(nil)

type expenseRepository struct {
	mu       sync.RWMutex
	expenses map[uuid.UUID]domain.Expense
}

// NewExpenseRepository creates an in-memory ExpenseRepository
func NewExpenseRepository() repository.ExpenseRepository {
	return &expenseRepository{expenses: make(map[uuid.UUID]domain.Expense)}
}

func (r *expenseRepository) Create(ctx context.Context, expense *domain.Expense) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.expenses[expense.ID] = *expense
	return nil
}

func (r *expenseRepository) List(ctx context.Context, limit int) ([]*domain.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	r.mu.RLock()
	all := make([]domain.Expense, 0, len(r.expenses))
	for _, e := range r.expenses {
		all = append(all, e)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]*domain.Expense, 0, len(all))
	for i := range all {
		out = append(out, &all[i])
	}
	return out, nil
}

func (r *expenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.expenses[id]; !ok {
		return domain.ErrExpenseNotFound
	}
	delete(r.expenses, id)
	return nil
}

func (r *expenseRepository) Total(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := decimal.Zero
	for _, e := range r.expenses {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}
