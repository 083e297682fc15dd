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

var _ repository.RecordRepository = (*recordRepository)(nil)

type recordRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.Record
}

// NewRecordRepository creates an in-memory RecordRepository
func NewRecordRepository() repository.RecordRepository {
	return &recordRepository{records: make(map[uuid.UUID]domain.Record)}
}

func (r *recordRepository) Create(ctx context.Context, record *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("create record", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return nil
	}
	r.records[record.ID] = cloneRecord(*record)
	return nil
}

func (r *recordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := cloneRecord(record)
	return &out, nil
}

func (r *recordRepository) List(ctx context.Context, kind domain.Kind, limit int) ([]*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	r.mu.RLock()
	matched := make([]domain.Record, 0, len(r.records))
	for _, record := range r.records {
		if kind == "" || record.Kind == kind {
			matched = append(matched, cloneRecord(record))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*domain.Record, 0, len(matched))
	for i := range matched {
		out = append(out, &matched[i])
	}
	return out, nil
}

func (r *recordRepository) UpdateStockStatus(ctx context.Context, id uuid.UUID, status domain.StockStatus, unresolved []uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("update record stock status", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	record.StockStatus = status
	record.Unresolved = append([]uuid.UUID(nil), unresolved...)
	r.records[id] = record
	return nil
}

func (r *recordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("delete record", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return domain.ErrRecordNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *recordRepository) Totals(ctx context.Context, kind domain.Kind, from, to time.Time) (domain.RecordTotals, error) {
	if err := ctx.Err(); err != nil {
		return domain.RecordTotals{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	totals := domain.RecordTotals{Amount: decimal.Zero, Profit: decimal.Zero}
	for _, record := range r.records {
		if record.Kind != kind || record.CreatedAt.Before(from) || !record.CreatedAt.Before(to) {
			continue
		}
		totals.Count++
		totals.Amount = totals.Amount.Add(record.TotalAmount)
		totals.Profit = totals.Profit.Add(record.Profit)
	}
	return totals, nil
}

func cloneRecord(r domain.Record) domain.Record {
	r.Items = append([]domain.CartLine(nil), r.Items...)
	r.Unresolved = append([]uuid.UUID(nil), r.Unresolved...)
	return r
}
