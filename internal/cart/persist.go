package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Persister loads and saves cart lines under a session key. Load returns an
// empty slice, not an error, for an unknown key.
type Persister interface {
	Load(ctx context.Context, key string) ([]Line, error)
	Save(ctx context.Context, key string, lines []Line) error
}

// Persist saves the cart through p after every change until the returned
// cancel function is called. Save errors are logged; the in-memory cart stays
// authoritative.
//
// Saves are serialized and each one writes the cart as it is when the save
// starts, so the last save always reflects the latest change even when
// notifications from concurrent mutations arrive out of order.
func Persist(ctx context.Context, s *Store, p Persister, key string, logger *zap.Logger) (cancel func()) {
	var mu sync.Mutex
	return s.Subscribe(func([]Line) {
		mu.Lock()
		defer mu.Unlock()
		if err := p.Save(ctx, key, s.Lines()); err != nil {
			logger.Warn("failed to persist cart", zap.String("cart_key", key), zap.Error(err))
		}
	})
}

// MemoryPersister keeps carts in process memory. Used when no Redis is
// configured and in tests. With a TTL, a cart not saved within the TTL is
// forgotten, like the Redis key would expire.
type MemoryPersister struct {
	mu    sync.Mutex
	carts map[string]memoryCart
	ttl   time.Duration
	now   func() time.Time
}

type memoryCart struct {
	lines   []Line
	expires time.Time
}

// NewMemoryPersister keeps carts until they are emptied.
func NewMemoryPersister() *MemoryPersister {
	return NewMemoryPersisterTTL(0)
}

// NewMemoryPersisterTTL expires carts ttl after their last save. A ttl of
// zero or less never expires.
func NewMemoryPersisterTTL(ttl time.Duration) *MemoryPersister {
	return &MemoryPersister{carts: make(map[string]memoryCart), ttl: ttl, now: time.Now}
}

func (m *MemoryPersister) expired(c memoryCart, now time.Time) bool {
	return m.ttl > 0 && !now.Before(c.expires)
}

func (m *MemoryPersister) Load(_ context.Context, key string) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[key]
	if !ok || m.expired(c, m.now()) {
		delete(m.carts, key)
		return []Line{}, nil
	}
	return cloneLines(c.lines), nil
}

// Save overwrites the stored cart and drops any expired ones.
func (m *MemoryPersister) Save(_ context.Context, key string, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, c := range m.carts {
		if m.expired(c, now) {
			delete(m.carts, k)
		}
	}

	if len(lines) == 0 {
		delete(m.carts, key)
		return nil
	}
	m.carts[key] = memoryCart{lines: cloneLines(lines), expires: now.Add(m.ttl)}
	return nil
}

// RedisPersister stores each cart as one JSON value with a sliding TTL.
type RedisPersister struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPersister(client *redis.Client, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return fmt.Sprintf("cart:session:%s", key)
}

func (r *RedisPersister) Load(ctx context.Context, key string) ([]Line, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}

	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	return lines, nil
}

// Save overwrites the stored cart. An empty cart deletes the key.
func (r *RedisPersister) Save(ctx context.Context, key string, lines []Line) error {
	if len(lines) == 0 {
		if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
			return fmt.Errorf("deleting cart: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	return nil
}
