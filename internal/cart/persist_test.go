package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupRedisPersister(t *testing.T, ttl time.Duration) (*RedisPersister, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPersister(client, ttl), mr
}

func TestRedisPersister_RoundTrip(t *testing.T) {
	p, mr := setupRedisPersister(t, time.Hour)
	ctx := context.Background()

	lines := []Line{
		{ProductID: "P0001", Price: 59.99, SalePrice: price(49.99), Quantity: 2, Attributes: map[string]any{"title": "Rust Casual Combo"}},
		{ProductID: "P0002", Price: 69.99, Quantity: 1},
	}
	require.NoError(t, p.Save(ctx, "sess-1", lines))

	assert.True(t, mr.Exists("cart:session:sess-1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:session:sess-1"))

	got, err := p.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 49.99, *got[0].SalePrice)
	assert.Equal(t, 2, got[0].Quantity)
	assert.Equal(t, "Rust Casual Combo", got[0].Attributes["title"])
	assert.Nil(t, got[1].SalePrice)
}

func TestRedisPersister_UnknownKeyIsEmpty(t *testing.T) {
	p, _ := setupRedisPersister(t, time.Hour)

	got, err := p.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisPersister_EmptyCartDeletesKey(t *testing.T) {
	p, mr := setupRedisPersister(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, "sess", []Line{{ProductID: "A", Quantity: 1}}))
	require.NoError(t, p.Save(ctx, "sess", nil))

	assert.False(t, mr.Exists("cart:session:sess"))
}

func TestRedisPersister_CorruptValue(t *testing.T) {
	p, mr := setupRedisPersister(t, time.Hour)
	require.NoError(t, mr.Set("cart:session:bad", "{not json"))

	_, err := p.Load(context.Background(), "bad")
	assert.Error(t, err)
}

func TestRedisPersister_Expiry(t *testing.T) {
	p, mr := setupRedisPersister(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, "sess", []Line{{ProductID: "A", Quantity: 1}}))
	mr.FastForward(2 * time.Minute)

	got, err := p.Load(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPersist_SavesEveryChange(t *testing.T) {
	p := NewMemoryPersister()
	s := New()
	cancel := Persist(context.Background(), s, p, "k", zap.NewNop())

	s.AddToCart(Product{ID: "A", Price: 3})
	s.AddToCart(Product{ID: "A", Price: 3})

	got, _ := p.Load(context.Background(), "k")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Quantity)

	s.ClearCart()
	got, _ = p.Load(context.Background(), "k")
	assert.Empty(t, got)

	cancel()
	s.AddToCart(Product{ID: "B"})
	got, _ = p.Load(context.Background(), "k")
	assert.Empty(t, got)
}

type failingPersister struct{}

func (failingPersister) Load(context.Context, string) ([]Line, error) {
	return nil, errors.New("redis down")
}

func (failingPersister) Save(context.Context, string, []Line) error {
	return errors.New("redis down")
}

func TestPersist_SaveFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := New()
	Persist(context.Background(), s, failingPersister{}, "k", zap.New(core))

	s.AddToCart(Product{ID: "A"})

	assert.Equal(t, 1, s.TotalItems())
	assert.Equal(t, 1, logs.FilterMessage("failed to persist cart").Len())
}

func TestRegistry_RestoresAndReusesCarts(t *testing.T) {
	p := NewMemoryPersister()
	ctx := context.Background()
	require.NoError(t, p.Save(ctx, "returning", []Line{{ProductID: "A", Price: 4, Quantity: 3}}))

	reg := NewRegistry(p, zap.NewNop())

	s1, err := reg.Get(ctx, "returning")
	require.NoError(t, err)
	assert.Equal(t, 3, s1.TotalItems())

	s2, err := reg.Get(ctx, "returning")
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	fresh, err := reg.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.TotalItems())
	assert.Equal(t, 2, reg.Len())

	fresh.AddToCart(Product{ID: "B", Price: 1})
	saved, _ := p.Load(ctx, "new")
	require.Len(t, saved, 1)
}

func TestRegistry_LoadError(t *testing.T) {
	reg := NewRegistry(failingPersister{}, zap.NewNop())

	_, err := reg.Get(context.Background(), "sess")
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_SavesSurviveRequestCancellation(t *testing.T) {
	p := NewMemoryPersister()
	reg := NewRegistry(p, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s, err := reg.Get(ctx, "sess")
	require.NoError(t, err)
	cancel()

	s.AddToCart(Product{ID: "A"})
	saved, _ := p.Load(context.Background(), "sess")
	assert.Len(t, saved, 1)
}

func TestPersist_ConcurrentChangesEndWithLatest(t *testing.T) {
	p := NewMemoryPersister()
	s := New()
	Persist(context.Background(), s, p, "k", zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AddToCart(Product{ID: fmt.Sprintf("P%d", i%4), Price: 1})
		}(i)
	}
	wg.Wait()

	got, err := p.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.ElementsMatch(t, s.Lines(), got)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_EvictsIdleCartsAndRestoresThem(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	p := NewMemoryPersister()
	reg := NewRegistry(p, zap.NewNop(), WithIdleTTL(time.Hour), WithRegistryClock(clock.Now))

	idle, err := reg.Get(ctx, "idle")
	require.NoError(t, err)
	idle.AddToCart(Product{ID: "A", Price: 2})
	idle.AddToCart(Product{ID: "A", Price: 2})

	clock.Advance(40 * time.Minute)
	_, err = reg.Get(ctx, "active")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, reg.EvictIdle())
	assert.Equal(t, 1, reg.Len())

	// The evicted store no longer persists.
	idle.AddToCart(Product{ID: "Z"})
	saved, _ := p.Load(ctx, "idle")
	require.Len(t, saved, 1)

	restored, err := reg.Get(ctx, "idle")
	require.NoError(t, err)
	assert.NotSame(t, idle, restored)
	assert.Equal(t, 2, restored.TotalItems())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_GetKeepsCartAlive(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	reg := NewRegistry(NewMemoryPersister(), zap.NewNop(), WithIdleTTL(time.Hour), WithRegistryClock(clock.Now))

	s1, err := reg.Get(ctx, "sess")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clock.Advance(50 * time.Minute)
		_, err := reg.Get(ctx, "sess")
		require.NoError(t, err)
		assert.Zero(t, reg.EvictIdle())
	}

	s2, err := reg.Get(ctx, "sess")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}

func TestRegistry_RunEvictsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	reg := NewRegistry(NewMemoryPersister(), zap.NewNop(), WithIdleTTL(time.Minute), WithRegistryClock(clock.Now))

	_, err := reg.Get(ctx, "sess")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	stopped := make(chan struct{})
	go func() {
		reg.Run(ctx, 5*time.Millisecond)
		close(stopped)
	}()

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.Eventually(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

type slowPersister struct {
	*MemoryPersister
	loads   sync.WaitGroup
	release chan struct{}
}

func (s *slowPersister) Load(ctx context.Context, key string) ([]Line, error) {
	s.loads.Done()
	<-s.release
	return s.MemoryPersister.Load(ctx, key)
}

func TestRegistry_ConcurrentFirstGetsShareOneStore(t *testing.T) {
	p := &slowPersister{MemoryPersister: NewMemoryPersister(), release: make(chan struct{})}
	p.loads.Add(2)
	reg := NewRegistry(p, zap.NewNop())

	var (
		wg     sync.WaitGroup
		stores [2]*Store
	)
	for i := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stores[i], _ = reg.Get(context.Background(), "sess")
		}()
	}

	// Both loads are in flight at once, so the registry lock is not held
	// across Load.
	p.loads.Wait()
	close(p.release)
	wg.Wait()

	require.NotNil(t, stores[0])
	assert.Same(t, stores[0], stores[1])
	assert.Equal(t, 1, reg.Len())
}

func TestMemoryPersister_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	p := NewMemoryPersisterTTL(time.Hour)
	p.now = clock.Now

	require.NoError(t, p.Save(ctx, "old", []Line{{ProductID: "A", Quantity: 1}}))
	clock.Advance(30 * time.Minute)
	require.NoError(t, p.Save(ctx, "new", []Line{{ProductID: "B", Quantity: 1}}))

	clock.Advance(31 * time.Minute)
	got, err := p.Load(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, _ = p.Load(ctx, "new")
	assert.Len(t, got, 1)

	clock.Advance(time.Hour)
	require.NoError(t, p.Save(ctx, "other", []Line{{ProductID: "C", Quantity: 1}}))
	p.mu.Lock()
	assert.Len(t, p.carts, 1, "expired carts are swept on save")
	p.mu.Unlock()
}
