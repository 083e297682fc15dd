package memory

import (
	"context"
	"sync"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/repository"
)

var _ repository.CartStore = (*cartStore)(nil)

type cartKey struct {
	session string
	kind    domain.Kind
}

type cartStore struct {
	mu    sync.Mutex
	lines map[cartKey][]domain.CartLine
}

// NewCartStore creates a process-local CartStore. Carts never expire.
func NewCartStore() repository.CartStore {
	return &cartStore{lines: make(map[cartKey][]domain.CartLine)}
}

func (s *cartStore) Load(ctx context.Context, sessionID string, kind domain.Kind) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.RestoreCart(kind, s.lines[cartKey{sessionID, kind}]), nil
}

func (s *cartStore) Save(ctx context.Context, sessionID string, cart *domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cartKey{sessionID, cart.Kind()}
	if cart.IsEmpty() {
		delete(s.lines, key)
		return nil
	}
	s.lines[key] = cart.Lines()
	return nil
}

func (s *cartStore) Delete(ctx context.Context, sessionID string, kind domain.Kind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lines, cartKey{sessionID, kind})
	return nil
}
