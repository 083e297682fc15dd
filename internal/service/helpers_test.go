package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/metrics"
	"pos-ledger/internal/repository"
	"pos-ledger/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errConnReset = errors.New("connection reset by peer")

// flakyLedger wraps a ledger and injects transient failures per product
type flakyLedger struct {
	repository.InventoryLedger

	mu sync.Mutex
	// failures is the number of calls to fail before succeeding; -1 fails forever.
	failures map[uuid.UUID]int
	// lostAcks applies the delta and then reports a transient failure.
	lostAcks map[uuid.UUID]int
	calls    map[string]int
}

func newFlakyLedger(inner repository.InventoryLedger) *flakyLedger {
	return &flakyLedger{
		InventoryLedger: inner,
		failures:        make(map[uuid.UUID]int),
		lostAcks:        make(map[uuid.UUID]int),
		calls:           make(map[string]int),
	}
}

func (f *flakyLedger) failFor(productID uuid.UUID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[productID] = n
}

func (f *flakyLedger) loseAcks(productID uuid.UUID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lostAcks[productID] = n
}

func (f *flakyLedger) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[uuid.UUID]int)
	f.lostAcks = make(map[uuid.UUID]int)
}

func (f *flakyLedger) callsFor(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *flakyLedger) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (int, error) {
	f.mu.Lock()
	f.calls[adj.Key]++
	n := f.failures[adj.ProductID]
	if n != 0 {
		if n > 0 {
			f.failures[adj.ProductID] = n - 1
		}
		f.mu.Unlock()
		return 0, domain.Unavailable("adjust stock", errConnReset)
	}
	lost := f.lostAcks[adj.ProductID]
	if lost > 0 {
		f.lostAcks[adj.ProductID] = lost - 1
	}
	f.mu.Unlock()

	qty, err := f.InventoryLedger.AdjustStock(ctx, adj)
	if err == nil && lost > 0 {
		return 0, domain.Unavailable("adjust stock", errConnReset)
	}
	return qty, err
}

// lostAckRecords persists the first lostAcks creates and then reports a
// transient failure, as if the connection dropped after the commit.
type lostAckRecords struct {
	repository.RecordRepository

	mu       sync.Mutex
	lostAcks int
	creates  int
}

func (r *lostAckRecords) Create(ctx context.Context, record *domain.Record) error {
	r.mu.Lock()
	r.creates++
	lost := r.lostAcks > 0
	if lost {
		r.lostAcks--
	}
	r.mu.Unlock()

	if err := r.RecordRepository.Create(ctx, record); err != nil {
		return err
	}
	if lost {
		return domain.Unavailable("create record", errConnReset)
	}
	return nil
}

// capturingPublisher records every published event
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.RecordEvent
	err    error
}

func (p *capturingPublisher) Publish(_ context.Context, event domain.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	catalog      *memory.Catalog
	ledger       *flakyLedger
	records      repository.RecordRepository
	checkout     CheckoutService
	compensation CompensationService
	publisher    *capturingPublisher
	registry     *prometheus.Registry
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		CallTimeout:    time.Second,
	}
}

func newFixture(t testing.TB, policy domain.StockPolicy) *fixture {
	t.Helper()

	catalog := memory.NewCatalog(policy)
	ledger := newFlakyLedger(catalog)
	records := memory.NewRecordRepository()
	publisher := &capturingPublisher{}
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(registry)
	logger := zaptest.NewLogger(t)

	return &fixture{
		catalog: catalog,
		ledger:  ledger,
		records: records,
		checkout: NewCheckoutService(records, ledger, CheckoutOptions{
			Retry:       fastRetry(),
			StockPolicy: policy,
			Publisher:   publisher,
			Metrics:     m,
			Logger:      logger,
		}),
		compensation: NewCompensationService(records, ledger, CompensationOptions{
			Retry:     fastRetry(),
			Publisher: publisher,
			Metrics:   m,
			Logger:    logger,
		}),
		publisher: publisher,
		registry:  registry,
	}
}

func (f *fixture) seed(t testing.TB, name string, price, cost int64, stock int) *domain.Product {
	t.Helper()

	p := &domain.Product{
		ID:            uuid.New(),
		Name:          name,
		SalePrice:     decimal.NewFromInt(price),
		CostPrice:     decimal.NewFromInt(cost),
		StockQuantity: stock,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, f.catalog.Create(context.Background(), p))
	return p
}

func (f *fixture) stock(t testing.TB, id uuid.UUID) int {
	t.Helper()

	qty, err := f.catalog.CurrentStock(context.Background(), id)
	require.NoError(t, err)
	return qty
}

func cartOf(kind domain.Kind, lines ...any) *domain.Cart {
	cart := domain.NewCart(kind)
	for i := 0; i+1 < len(lines); i += 2 {
		cart.AddLine(lines[i].(*domain.Product), lines[i+1].(int))
	}
	return cart
}

// counter sums every series of a counter family in the fixture registry
func (f *fixture) counter(t testing.TB, name string) float64 {
	t.Helper()

	families, err := f.registry.Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
