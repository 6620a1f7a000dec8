package cache

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/carshare/internal/domain/car"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newClockedTTL(ttl time.Duration, max int) (*TTL[int], *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[int](ttl, max)
	c.now = clk.now
	return c, clk
}

func TestTTLExpires(t *testing.T) {
	c, clk := newClockedTTL(10*time.Second, 0)
	c.Set("k", 1)

	if v, ok := c.Get("k"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	clk.advance(11 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed, len=%d", c.Len())
	}
}

func TestTTLDefaults(t *testing.T) {
	c := NewTTL[string](0, 0)
	if c.ttl != defaultTTL || c.maxEntries != defaultMaxEntries {
		t.Fatalf("unexpected defaults ttl=%v max=%d", c.ttl, c.maxEntries)
	}
}

func TestTTLEvictsWhenFull(t *testing.T) {
	c, clk := newClockedTTL(time.Minute, 2)

	c.Set("a", 1)
	clk.advance(time.Second)
	c.Set("b", 2)
	clk.advance(time.Second)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry closest to expiry should be evicted")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("newest entry missing: %v %v", v, ok)
	}

	// overwriting an existing key never evicts
	c.Set("b", 20)
	if c.Len() != 2 {
		t.Fatalf("len = %d after overwrite", c.Len())
	}
}

func TestMemoryListingsInvalidate(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryListings(time.Minute)

	key := ListingsKey(car.SearchFilter{})
	gen, err := l.Generation(ctx)
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	if err := l.Set(ctx, gen, key, []car.Car{{ID: "c1"}}); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := l.Get(ctx, key)
	if err != nil || !ok || len(got) != 1 {
		t.Fatalf("expected hit, got %v %v %v", got, ok, err)
	}

	if err := l.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if _, ok, _ := l.Get(ctx, key); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestMemoryListingsDropsStaleGeneration(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryListings(time.Minute)
	key := ListingsKey(car.SearchFilter{})

	before, _ := l.Generation(ctx)

	// a car write lands between the reader's store read and its Set
	if err := l.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := l.Set(ctx, before, key, []car.Car{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := l.Get(ctx, key); ok {
		t.Fatal("write from an old generation must be dropped")
	}

	current, _ := l.Generation(ctx)
	if current == before {
		t.Fatal("invalidate must advance the generation")
	}
	if err := l.Set(ctx, current, key, []car.Car{{ID: "c1"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, ok, _ := l.Get(ctx, key); !ok || len(got) != 1 {
		t.Fatalf("expected hit for current generation, got %v %v", got, ok)
	}
}

func TestListingsKey(t *testing.T) {
	loc := "  Austin "
	price := 45.5

	tests := []struct {
		name   string
		filter car.SearchFilter
		want   string
	}{
		{"empty", car.SearchFilter{}, "cars:list:v1:location=:max_price="},
		{"location normalised", car.SearchFilter{Location: &loc}, "cars:list:v1:location=austin:max_price="},
		{"price", car.SearchFilter{MaxPrice: &price}, "cars:list:v1:location=:max_price=45.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ListingsKey(tt.filter); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}
