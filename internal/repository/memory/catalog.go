package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"

	"github.com/google/uuid"
)

var (
	_ repository.ProductRepository = (*Catalog)(nil)
	_ repository.InventoryLedger   = (*Catalog)(nil)
)

// Catalog holds products and their stock movements behind one lock, so a
// delta and its movement row are applied together like the postgres
// transaction does.
type Catalog struct {
	mu        sync.RWMutex
	policy    domain.StockPolicy
	products  map[uuid.UUID]domain.Product
	movements map[string]domain.StockMovement
	history   map[uuid.UUID][]string
	now       func() time.Time
}

// NewCatalog creates an empty in-memory catalog and inventory ledger
func NewCatalog(policy domain.StockPolicy) *Catalog {
	return &Catalog{
		policy:    policy,
		products:  make(map[uuid.UUID]domain.Product),
		movements: make(map[string]domain.StockMovement),
		history:   make(map[uuid.UUID][]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *Catalog) Create(ctx context.Context, product *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if product.Code != "" && c.codeTaken(product.Code, product.ID) {
		return domain.ErrProductCodeTaken
	}

	c.products[product.ID] = *product
	return nil
}

func (c *Catalog) Update(ctx context.Context, product *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.Code != "" && c.codeTaken(product.Code, product.ID) {
		return domain.ErrProductCodeTaken
	}

	existing.Name = product.Name
	existing.Code = product.Code
	existing.SalePrice = product.SalePrice
	existing.CostPrice = product.CostPrice
	existing.UpdatedAt = c.now()
	c.products[product.ID] = existing

	product.StockQuantity = existing.StockQuantity
	product.UpdatedAt = existing.UpdatedAt
	return nil
}

func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(c.products, id)
	return nil
}

func (c *Catalog) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (c *Catalog) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrProductNotFound
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.products {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (c *Catalog) List(ctx context.Context, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	return c.filter(ctx, func(domain.Product) bool { return true }, page, pageSize, sortBy, sortOrder)
}

func (c *Catalog) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	query = strings.TrimSpace(query)
	needle := strings.ToLower(query)
	return c.filter(ctx, func(p domain.Product) bool {
		return needle == "" || strings.Contains(strings.ToLower(p.Name), needle) || p.Code == query
	}, page, pageSize, "name", repository.SortOrderAsc)
}

func (c *Catalog) filter(ctx context.Context, keep func(domain.Product) bool, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	c.mu.RLock()
	matched := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		if keep(p) {
			matched = append(matched, p)
		}
	}
	c.mu.RUnlock()

	less := productLess(sortBy)
	sort.Slice(matched, func(i, j int) bool {
		if sortOrder == repository.SortOrderDesc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	out := make([]*domain.Product, 0, end-start)
	for i := start; i < end; i++ {
		p := matched[i]
		out = append(out, &p)
	}
	return out, total, nil
}

func productLess(sortBy string) func(a, b domain.Product) bool {
	var primary func(a, b domain.Product) int
	switch sortBy {
	case "sale_price":
		primary = func(a, b domain.Product) int { return a.SalePrice.Cmp(b.SalePrice) }
	case "cost_price":
		primary = func(a, b domain.Product) int { return a.CostPrice.Cmp(b.CostPrice) }
	case "stock_quantity":
		primary = func(a, b domain.Product) int { return a.StockQuantity - b.StockQuantity }
	case "created_at":
		primary = func(a, b domain.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		primary = func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) }
	}
	return func(a, b domain.Product) bool {
		if d := primary(a, b); d != 0 {
			return d < 0
		}
		return a.ID.String() < b.ID.String()
	}
}

// codeTaken must be called with the lock held
func (c *Catalog) codeTaken(code string, self uuid.UUID) bool {
	for id, p := range c.products {
		if id != self && p.Code == code {
			return true
		}
	}
	return false
}

func (c *Catalog) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.Unavailable("adjust stock", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[adj.ProductID]
	if _, applied := c.movements[adj.Key]; applied {
		if !ok {
			return 0, domain.ErrProductNotFound
		}
		return p.StockQuantity, nil
	}
	if !ok {
		return 0, domain.ErrProductNotFound
	}

	next := p.StockQuantity + adj.Delta
	if c.policy.Rejects(next) {
		return 0, domain.ErrInsufficientStock
	}

	p.StockQuantity = next
	c.products[adj.ProductID] = p
	c.record(adj.Key, adj.ProductID, adj.Delta, next)
	return next, nil
}

func (c *Catalog) CurrentStock(ctx context.Context, productID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	return p.StockQuantity, nil
}

func (c *Catalog) Resync(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if quantity < 0 {
		return 0, domain.ErrNegativeStock
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}

	delta := quantity - p.StockQuantity
	p.StockQuantity = quantity
	c.products[productID] = p
	c.record(domain.ResyncKey(productID), productID, delta, quantity)
	return quantity, nil
}

func (c *Catalog) Movements(ctx context.Context, productID uuid.UUID, limit int) ([]domain.StockMovement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := c.history[productID]
	out := make([]domain.StockMovement, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.movements[keys[i]])
	}
	return out, nil
}

// record must be called with the write lock held
func (c *Catalog) record(key string, productID uuid.UUID, delta, after int) {
	c.movements[key] = domain.StockMovement{
		Key:           key,
		ProductID:     productID,
		Delta:         delta,
		QuantityAfter: after,
		CreatedAt:     c.now(),
	}
	c.history[productID] = append(c.history[productID], key)
}
