package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pos-ledger/internal/domain"

	"github.com/google/uuid"
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductRepository defines the catalog data access. None of its writes touch
// stock_quantity except Create, which sets the opening balance; afterwards
// stock moves only through the InventoryLedger.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByCode(ctx context.Context, code string) (*domain.Product, error)
	List(ctx context.Context, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
	Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)
}

const productColumns = `id, name, code, sale_price, cost_price, stock_quantity, created_at, updated_at`

var productSortFields = map[string]bool{
	"name":           true,
	"sale_price":     true,
	"cost_price":     true,
	"stock_quantity": true,
	"created_at":     true,
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, code, sale_price, cost_price, stock_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		nullString(product.Code),
		product.SalePrice,
		product.CostPrice,
		product.StockQuantity,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductCodeTaken
		}
		return storeError("create product", err)
	}

	return nil
}

// Update rewrites the catalog attributes of a product and leaves
// stock_quantity untouched
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, code = $3, sale_price = $4, cost_price = $5
		WHERE id = $1
		RETURNING stock_quantity, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		nullString(product.Code),
		product.SalePrice,
		product.CostPrice,
	).Scan(&product.StockQuantity, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if isUniqueViolation(err) {
			return domain.ErrProductCodeTaken
		}
		return storeError("update product", err)
	}

	return nil
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return storeError("delete product", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, storeError("find product by ID", err)
	}

	return product, nil
}

// FindByCode looks a product up by its barcode or SKU
func (r *productRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrProductNotFound
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE code = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, storeError("find product by code", err)
	}

	return product, nil
}

// List retrieves products with pagination and sorting
func (r *productRepository) List(ctx context.Context, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	if !productSortFields[sortBy] {
		sortBy = "name"
	}
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderAsc
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, storeError("count products", err)
	}

	page, pageSize = normalizePage(page, pageSize)

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		ORDER BY %s %s, id
		LIMIT $1 OFFSET $2
	`, productColumns, sortBy, sortOrder)

	rows, err := r.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, storeError("list products", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Search matches products by name or exact code, case-insensitively
func (r *productRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.List(ctx, page, pageSize, "name", SortOrderAsc)
	}

	searchPattern := "%" + query + "%"

	countQuery := `
		SELECT COUNT(*)
		FROM products
		WHERE name ILIKE $1 OR code = $2
	`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, searchPattern, query).Scan(&total); err != nil {
		return nil, 0, storeError("count search results", err)
	}

	page, pageSize = normalizePage(page, pageSize)

	searchQuery := `
		SELECT ` + productColumns + `
		FROM products
		WHERE name ILIKE $1 OR code = $2
		ORDER BY name ASC, id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, searchQuery, searchPattern, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, storeError("search products", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var code sql.NullString
	err := row.Scan(
		&product.ID,
		&product.Name,
		&code,
		&product.SalePrice,
		&product.CostPrice,
		&product.StockQuantity,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	product.Code = code.String
	return product, nil
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterate products", err)
	}

	return products, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// normalizePage clamps pagination input to page >= 1 and 1 <= pageSize <= 100
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
