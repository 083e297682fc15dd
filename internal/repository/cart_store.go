package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-ledger/internal/domain"

	"github.com/redis/go-redis/v9"
)

// CartStore keeps each operator's open carts between requests. A session
// holds at most one cart per kind.
type CartStore interface {
	// Load returns the stored cart, or a new empty cart of the kind.
	Load(ctx context.Context, sessionID string, kind domain.Kind) (*domain.Cart, error)
	Save(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string, kind domain.Kind) error
}

type redisCartStore struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisCartStore stores carts as JSON under "<prefix>:<session>:<kind>".
// Each save refreshes the ttl so abandoned carts expire.
func NewRedisCartStore(client redis.Cmdable, ttl time.Duration) CartStore {
	return &redisCartStore{client: client, ttl: ttl, prefix: "cart"}
}

func (s *redisCartStore) key(sessionID string, kind domain.Kind) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, sessionID, kind)
}

func (s *redisCartStore) Load(ctx context.Context, sessionID string, kind domain.Kind) (*domain.Cart, error) {
	data, err := s.client.Get(ctx, s.key(sessionID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewCart(kind), nil
	}
	if err != nil {
		return nil, domain.Unavailable("load cart", err)
	}

	cart := &domain.Cart{}
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	if cart.Kind() != kind {
		return domain.NewCart(kind), nil
	}

	return cart, nil
}

func (s *redisCartStore) Save(ctx context.Context, sessionID string, cart *domain.Cart) error {
	if cart.IsEmpty() {
		return s.Delete(ctx, sessionID, cart.Kind())
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sessionID, cart.Kind()), data, s.ttl).Err(); err != nil {
		return domain.Unavailable("save cart", err)
	}

	return nil
}

func (s *redisCartStore) Delete(ctx context.Context, sessionID string, kind domain.Kind) error {
	if err := s.client.Del(ctx, s.key(sessionID, kind)).Err(); err != nil {
		return domain.Unavailable("delete cart", err)
	}
	return nil
}
