package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos-ledger/internal/domain"

	"github.com/google/uuid"
)

// InventoryLedger is the only writer of stock_quantity. Every change is a
// server-side delta keyed for idempotency, except Resync which is an explicit
// absolute overwrite requested by a manager.
type InventoryLedger interface {
	// AdjustStock applies adj.Delta at most once per adj.Key and returns the
	// resulting quantity. Replaying a key returns the current quantity.
	AdjustStock(ctx context.Context, adj domain.StockAdjustment) (int, error)
	// CurrentStock is an advisory read, never the basis for a write.
	CurrentStock(ctx context.Context, productID uuid.UUID) (int, error)
	Resync(ctx context.Context, productID uuid.UUID, quantity int) (int, error)
	Movements(ctx context.Context, productID uuid.UUID, limit int) ([]domain.StockMovement, error)
}

type inventoryRepository struct {
	db     *sql.DB
	policy domain.StockPolicy
}

// NewInventoryRepository creates a postgres backed InventoryLedger
func NewInventoryRepository(db *sql.DB, policy domain.StockPolicy) InventoryLedger {
	return &inventoryRepository{db: db, policy: policy}
}

func (r *inventoryRepository) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeError("begin stock adjustment", err)
	}
	defer tx.Rollback()

	// Claim the key first. A concurrent claim of the same key blocks here until
	// the first transaction settles, then sees the conflict.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (key, product_id, delta, quantity_after)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (key) DO NOTHING
	`, adj.Key, adj.ProductID, adj.Delta)
	if err != nil {
		return 0, storeError("record stock movement", err)
	}

	claimed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if claimed == 0 {
		qty, err := currentStock(ctx, tx, adj.ProductID)
		if err != nil {
			return 0, err
		}
		return qty, tx.Commit()
	}

	update := `
		UPDATE products
		SET stock_quantity = stock_quantity + $2
		WHERE id = $1
		RETURNING stock_quantity
	`
	if r.policy == domain.StockPolicyReject {
		update = `
			UPDATE products
			SET stock_quantity = stock_quantity + $2
			WHERE id = $1 AND stock_quantity + $2 >= 0
			RETURNING stock_quantity
		`
	}

	var quantity int
	err = tx.QueryRowContext(ctx, update, adj.ProductID, adj.Delta).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the product is gone or the conditional update refused.
		if _, err := currentStock(ctx, tx, adj.ProductID); err != nil {
			return 0, err
		}
		return 0, domain.ErrInsufficientStock
	}
	if err != nil {
		return 0, storeError("adjust stock", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_movements SET quantity_after = $2 WHERE key = $1`,
		adj.Key, quantity,
	); err != nil {
		return 0, storeError("record stock movement", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeError("commit stock adjustment", err)
	}

	return quantity, nil
}

func (r *inventoryRepository) CurrentStock(ctx context.Context, productID uuid.UUID) (int, error) {
	return currentStock(ctx, r.db, productID)
}

// Resync overwrites a product's stock with an absolute count and records the
// implied delta as a movement
func (r *inventoryRepository) Resync(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	if quantity < 0 {
		return 0, domain.ErrNegativeStock
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeError("begin stock resync", err)
	}
	defer tx.Rollback()

	var previous int
	err = tx.QueryRowContext(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`, productID,
	).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, storeError("lock product stock", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET stock_quantity = $2 WHERE id = $1`, productID, quantity,
	); err != nil {
		return 0, storeError("resync stock", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (key, product_id, delta, quantity_after)
		VALUES ($1, $2, $3, $4)
	`, domain.ResyncKey(productID), productID, quantity-previous, quantity); err != nil {
		return 0, storeError("record stock movement", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeError("commit stock resync", err)
	}

	return quantity, nil
}

// Movements lists the most recent movements of a product, newest first
func (r *inventoryRepository) Movements(ctx context.Context, productID uuid.UUID, limit int) ([]domain.StockMovement, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT key, product_id, delta, quantity_after, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC, key
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, storeError("list stock movements", err)
	}
	defer rows.Close()

	movements := []domain.StockMovement{}
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.Key, &m.ProductID, &m.Delta, &m.QuantityAfter, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterate stock movements", err)
	}

	return movements, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func currentStock(ctx context.Context, q queryRower, productID uuid.UUID) (int, error) {
	var quantity int
	err := q.QueryRowContext(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1`, productID,
	).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, storeError("read stock", err)
	}
	return quantity, nil
}
