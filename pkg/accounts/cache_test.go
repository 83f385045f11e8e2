package accounts

import (
	"testing"
	"time"
)

func TestLRUCache_GetSetInvalidate(t *testing.T) {
	cache := NewLRUCache(10)

	if _, found := cache.Get("account:a@example.com"); found {
		t.Error("Expected cache miss for non-existent record")
	}

	rec := &Record{Email: StringPtr("a@example.com"), PlanStatus: PlanStatusActive}
	cache.Set("account:a@example.com", rec, time.Minute)

	cached, found := cache.Get("account:a@example.com")
	if !found {
		t.Fatal("Expected cache hit")
	}
	if *cached.Email != "a@example.com" || cached.PlanStatus != PlanStatusActive {
		t.Errorf("Cached record mismatch: got %+v", cached)
	}

	cache.Invalidate("account:a@example.com")
	if _, found := cache.Get("account:a@example.com"); found {
		t.Error("Expected cache miss after invalidation")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestLRUCache_Expiration(t *testing.T) {
	cache := NewLRUCache(10)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("k", &Record{}, time.Second)
	if _, found := cache.Get("k"); !found {
		t.Fatal("Expected cache hit before expiry")
	}

	now = now.Add(2 * time.Second)
	if _, found := cache.Get("k"); found {
		t.Error("Expected cache miss after expiry")
	}
	if cache.Stats().Size != 0 {
		t.Error("Expected expired entry to be dropped")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewLRUCache(2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("a", &Record{}, time.Minute)
	now = now.Add(time.Millisecond)
	cache.Set("b", &Record{}, time.Minute)
	now = now.Add(time.Millisecond)
	cache.Get("a")
	now = now.Add(time.Millisecond)
	cache.Set("c", &Record{}, time.Minute)

	if _, found := cache.Get("b"); found {
		t.Error("Expected b to be evicted")
	}
	if _, found := cache.Get("a"); !found {
		t.Error("Expected a to survive eviction")
	}
	if cache.Stats().Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", cache.Stats().Evictions)
	}
}

func TestLRUCache_ReturnsCopies(t *testing.T) {
	cache := NewLRUCache(10)
	cache.Set("k", &Record{Email: StringPtr("a@example.com")}, time.Minute)

	first, _ := cache.Get("k")
	*first.Email = "mutated@example.com"

	second, _ := cache.Get("k")
	if *second.Email != "a@example.com" {
		t.Errorf("Cache entry mutated through returned record: %s", *second.Email)
	}
}

func TestNoopCache(t *testing.T) {
	cache := NewNoopCache()
	cache.Set("k", &Record{}, time.Minute)
	if _, found := cache.Get("k"); found {
		t.Error("NoopCache should never hit")
	}
	cache.Invalidate("k")
	cache.Clear()
	if cache.Stats() != (CacheStats{}) {
		t.Error("NoopCache should report empty stats")
	}
}
