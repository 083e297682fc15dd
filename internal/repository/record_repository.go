package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-ledger/internal/domain"

	"github.com/google/uuid"
)

// RecordRepository persists committed sale and purchase records. Records are
// immutable apart from their stock status, which tracks how much of the
// inventory effect has reached the ledger.
type RecordRepository interface {
	Create(ctx context.Context, record *domain.Record) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	// List returns records newest first. An empty kind lists both kinds.
	List(ctx context.Context, kind domain.Kind, limit int) ([]*domain.Record, error)
	UpdateStockStatus(ctx context.Context, id uuid.UUID, status domain.StockStatus, unresolved []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Totals aggregates records of a kind created in [from, to).
	Totals(ctx context.Context, kind domain.Kind, from, to time.Time) (domain.RecordTotals, error)
}

const recordColumns = `id, kind, total_amount, discount_percent, profit, items, summary, operator_id, stock_status, unresolved, created_at`

type recordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new instance of RecordRepository
func NewRecordRepository(db *sql.DB) RecordRepository {
	return &recordRepository{db: db}
}

// Create inserts record. Ids are generated per commit, so an existing row with
// the same id is an earlier attempt whose acknowledgement was lost and is left
// as it is.
func (r *recordRepository) Create(ctx context.Context, record *domain.Record) error {
	items, err := json.Marshal(record.Items)
	if err != nil {
		return fmt.Errorf("failed to encode record items: %w", err)
	}
	unresolved, err := encodeIDs(record.Unresolved)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		record.ID,
		string(record.Kind),
		record.TotalAmount,
		record.DiscountPercent,
		record.Profit,
		string(items),
		record.Summary,
		record.OperatorID,
		string(record.StockStatus),
		string(unresolved),
		record.CreatedAt,
	)
	if err != nil {
		return storeError("create record", err)
	}

	return nil
}

func (r *recordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, storeError("find record by ID", err)
	}

	return record, nil
}

func (r *recordRepository) List(ctx context.Context, kind domain.Kind, limit int) ([]*domain.Record, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, string(kind), limit)
	if err != nil {
		return nil, storeError("list records", err)
	}
	defer rows.Close()

	records := []*domain.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterate records", err)
	}

	return records, nil
}

func (r *recordRepository) UpdateStockStatus(ctx context.Context, id uuid.UUID, status domain.StockStatus, unresolved []uuid.UUID) error {
	encoded, err := encodeIDs(unresolved)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE records SET stock_status = $2, unresolved = $3 WHERE id = $1`,
		id, string(status), string(encoded),
	)
	if err != nil {
		return storeError("update record stock status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (r *recordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return storeError("delete record", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (r *recordRepository) Totals(ctx context.Context, kind domain.Kind, from, to time.Time) (domain.RecordTotals, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(profit), 0)
		FROM records
		WHERE kind = $1 AND created_at >= $2 AND created_at < $3
	`

	var totals domain.RecordTotals
	err := r.db.QueryRowContext(ctx, query, string(kind), from, to).
		Scan(&totals.Count, &totals.Amount, &totals.Profit)
	if err != nil {
		return domain.RecordTotals{}, storeError("total records", err)
	}

	return totals, nil
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	record := &domain.Record{}
	var items, unresolved []byte

	err := row.Scan(
		&record.ID,
		&record.Kind,
		&record.TotalAmount,
		&record.DiscountPercent,
		&record.Profit,
		&items,
		&record.Summary,
		&record.OperatorID,
		&record.StockStatus,
		&unresolved,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	// A snapshot that fails to decode is kept empty so compensation can
	// refuse it instead of the read failing.
	if err := json.Unmarshal(items, &record.Items); err != nil {
		record.Items = nil
	}
	if len(unresolved) > 0 {
		if err := json.Unmarshal(unresolved, &record.Unresolved); err != nil {
			return nil, fmt.Errorf("failed to decode unresolved lines: %w", err)
		}
	}

	return record, nil
}

func encodeIDs(ids []uuid.UUID) ([]byte, error) {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product ids: %w", err)
	}
	return encoded, nil
}
