package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultIdleTTL matches the default CART_TTL.
const DefaultIdleTTL = 7 * 24 * time.Hour

// Registry hands out one Store per cart session, restoring it from the
// persister the first time the session is seen in this process. Carts idle
// for longer than the idle TTL are dropped from memory by EvictIdle; the
// persister still holds their lines, so the next Get restores them.
type Registry struct {
	mu        sync.Mutex
	carts     map[string]*entry
	persister Persister
	idleTTL   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type entry struct {
	store    *Store
	cancel   func()
	lastUsed time.Time
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL sets how long an untouched cart stays in memory.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

// WithRegistryClock replaces time.Now, for tests.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(p Persister, logger *zap.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		carts:     make(map[string]*entry),
		persister: p,
		idleTTL:   DefaultIdleTTL,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the cart for session, loading it on first use.
func (r *Registry) Get(ctx context.Context, session string) (*Store, error) {
	if s, ok := r.touch(session); ok {
		return s, nil
	}

	// Load without holding the registry lock so one slow round trip does
	// not stall every other session.
	lines, err := r.persister.Load(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("restoring cart %s: %w", session, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have restored the same session meanwhile.
	if e, ok := r.carts[session]; ok {
		e.lastUsed = r.now()
		return e.store, nil
	}

	s := Restore(lines)
	// Saves must outlive the request that first touched the cart.
	cancel := Persist(context.WithoutCancel(ctx), s, r.persister, session, r.logger)
	r.carts[session] = &entry{store: s, cancel: cancel, lastUsed: r.now()}
	return s, nil
}

func (r *Registry) touch(session string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.carts[session]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.store, true
}

// EvictIdle drops carts not fetched within the idle TTL and stops their
// persistence subscriptions. It returns how many were dropped.
func (r *Registry) EvictIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	evicted := 0
	for session, e := range r.carts {
		if e.lastUsed.After(cutoff) {
			continue
		}
		e.cancel()
		delete(r.carts, session)
		evicted++
	}
	return evicted
}

// Run calls EvictIdle every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				r.logger.Debug("evicted idle carts", zap.Int("evicted", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}

// Len reports how many carts are held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}
