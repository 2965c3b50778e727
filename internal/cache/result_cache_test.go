package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"brainark-core/internal/observability"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_GetSetRoundTrip(t *testing.T) {
	c := New[string]()

	c.Set("snapshot", "value1")

	got, ok := c.Get("snapshot")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "value1" {
		t.Errorf("got %q, want %q", got, "value1")
	}

	_, ok = c.Get("missing")
	if ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1704067200, 0)}
	c := New(WithTTL[int](time.Minute), WithClock[int](clock.Now))

	c.Set("k", 42)

	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("expected hit before TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after TTL")
	}

	// The stale entry was evicted on read.
	if c.Len() != 0 {
		t.Errorf("stale entry not evicted: len=%d", c.Len())
	}
}

func TestCache_HitCountEviction(t *testing.T) {
	c := New(WithCapacity[int](3))

	c.Set("hot", 1)
	c.Set("warm", 2)
	c.Set("cold", 3)

	// hot: 3 extra hits, warm: 1 extra hit, cold: none.
	for i := 0; i < 3; i++ {
		c.Get("hot")
	}
	c.Get("warm")

	// At capacity, the lowest-hit entry is evicted, not the oldest.
	c.Set("new", 4)

	if _, ok := c.Get("cold"); ok {
		t.Error("cold entry should have been evicted")
	}
	if _, ok := c.Get("hot"); !ok {
		t.Error("hot entry should survive eviction")
	}
	if _, ok := c.Get("warm"); !ok {
		t.Error("warm entry should survive eviction")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("new entry should be present")
	}
}

func TestCache_SetExistingKeyDoesNotEvict(t *testing.T) {
	c := New(WithCapacity[int](2))

	c.Set("a", 1)
	c.Set("b", 2)

	// Overwriting a live key must not evict anything.
	c.Set("a", 10)

	if c.Len() != 2 {
		t.Errorf("len: got %d, want 2", c.Len())
	}
	got, ok := c.Get("a")
	if !ok || got != 10 {
		t.Errorf("a: got %d ok=%v, want 10", got, ok)
	}
}

func TestCache_InvalidatePattern(t *testing.T) {
	c := New[int]()

	c.Set("liquidity_snapshot", 1)
	c.Set("liquidity_progress", 2)
	c.Set("sell_permission", 3)

	c.Invalidate("liquidity")

	if _, ok := c.Get("liquidity_snapshot"); ok {
		t.Error("liquidity_snapshot should be invalidated")
	}
	if _, ok := c.Get("liquidity_progress"); ok {
		t.Error("liquidity_progress should be invalidated")
	}
	if _, ok := c.Get("sell_permission"); !ok {
		t.Error("sell_permission should survive")
	}

	c.Invalidate("")
	if c.Len() != 0 {
		t.Errorf("full invalidate left %d entries", c.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(WithCapacity[int](16))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id%8)
			c.Set(key, id)
			c.Get(key)
			if id%4 == 0 {
				c.Invalidate("key-3")
			}
		}(i)
	}
	wg.Wait()
}

func TestCache_EvictionBumpsCounter(t *testing.T) {
	before := testutil.ToFloat64(observability.DefaultMetrics.CacheEvictions)

	c := New(WithCapacity[int](1))
	c.Set("first", 1)
	c.Set("second", 2)

	after := testutil.ToFloat64(observability.DefaultMetrics.CacheEvictions)
	if after != before+1 {
		t.Errorf("evictions counter = %v, want %v", after, before+1)
	}
}
