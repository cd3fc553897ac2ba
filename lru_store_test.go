package axion

import (
	"context"
	"testing"
	"time"
)

func newEntry(key string, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Key:          key,
		Status:       200,
		Data:         []byte(key),
		CreatedAt:    now,
		TTL:          ttl,
		LastAccessed: now,
	}
}

func TestLRUStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore(10)

	if _, ok := s.Get(ctx, "missing"); ok {
		t.Error("Get on empty store should miss")
	}

	s.Set(ctx, "a", newEntry("a", time.Minute))
	entry, ok := s.Get(ctx, "a")
	if !ok {
		t.Fatal("Get should find the stored entry")
	}
	if string(entry.Data) != "a" {
		t.Errorf("Data = %q, want %q", entry.Data, "a")
	}
	if entry.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", entry.AccessCount)
	}
}

func TestLRUStoreEvictsLeastRecentlyAccessed(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore(3)

	s.Set(ctx, "a", newEntry("a", time.Minute))
	s.Set(ctx, "b", newEntry("b", time.Minute))
	s.Set(ctx, "c", newEntry("c", time.Minute))

	// Touch a and b so c is the coldest entry.
	s.Get(ctx, "a")
	s.Get(ctx, "b")

	s.Set(ctx, "d", newEntry("d", time.Minute))

	if _, ok := s.Get(ctx, "c"); ok {
		t.Error("c should have been evicted")
	}
	for _, key := range []string{"a", "b", "d"} {
		if _, ok := s.Get(ctx, key); !ok {
			t.Errorf("%s should still be present", key)
		}
	}
}

func TestLRUStoreReplaceDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore(2)

	s.Set(ctx, "a", newEntry("a", time.Minute))
	s.Set(ctx, "b", newEntry("b", time.Minute))
	s.Set(ctx, "a", newEntry("a2", time.Minute))

	if got := s.Len(ctx); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
	entry, ok := s.Get(ctx, "a")
	if !ok || string(entry.Data) != "a2" {
		t.Errorf("replaced entry = %v, want a2", entry)
	}
}

func TestLRUStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore(10)

	s.Set(ctx, "short", newEntry("short", 20*time.Millisecond))
	if _, ok := s.Get(ctx, "short"); !ok {
		t.Fatal("entry should be fresh immediately after Set")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := s.Get(ctx, "short"); ok {
		t.Error("entry should have expired")
	}
	if got := s.Len(ctx); got != 0 {
		t.Errorf("Len after lazy expiry = %d, want 0", got)
	}
}

func TestLRUStoreClearPattern(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore(10)

	s.Set(ctx, "GET https://api.example.com/users", newEntry("u", time.Minute))
	s.Set(ctx, "GET https://api.example.com/users?page=2", newEntry("u2", time.Minute))
	s.Set(ctx, "GET https://api.example.com/orders", newEntry("o", time.Minute))

	if n := s.Clear(ctx, "/users"); n != 2 {
		t.Errorf("Clear(/users) = %d, want 2", n)
	}
	if got := s.Len(ctx); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}

	if n := s.Clear(ctx, ""); n != 1 {
		t.Errorf("Clear(\"\") = %d, want 1", n)
	}
	if got := s.Len(ctx); got != 0 {
		t.Errorf("Len after full clear = %d, want 0", got)
	}
}

func TestLRUStoreResizeShrinks(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore(4)

	for _, key := range []string{"a", "b", "c", "d"} {
		s.Set(ctx, key, newEntry(key, time.Minute))
	}
	s.Get(ctx, "c")
	s.Get(ctx, "d")

	s.Resize(ctx, 2)

	if got := s.Len(ctx); got != 2 {
		t.Fatalf("Len after resize = %d, want 2", got)
	}
	for _, key := range []string{"c", "d"} {
		if _, ok := s.Get(ctx, key); !ok {
			t.Errorf("%s should survive the shrink", key)
		}
	}
}

func TestLRUStoreAdjustTTL(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore(10)

	s.Set(ctx, "stale", newEntry("stale", 10*time.Millisecond))
	s.Set(ctx, "fresh", newEntry("fresh", time.Minute))
	time.Sleep(20 * time.Millisecond)

	s.AdjustTTL(ctx, time.Hour)

	if _, ok := s.Get(ctx, "stale"); ok {
		t.Error("already-expired entry must not be revived")
	}
	entry, ok := s.Get(ctx, "fresh")
	if !ok {
		t.Fatal("fresh entry should survive")
	}
	if entry.TTL != time.Hour {
		t.Errorf("TTL = %v, want 1h", entry.TTL)
	}
}

func TestLRUStoreKeys(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore(10)
	s.Set(ctx, "a", newEntry("a", time.Minute))
	s.Set(ctx, "b", newEntry("b", time.Minute))

	keys := s.Keys(ctx)
	if len(keys) != 2 {
		t.Fatalf("Keys() returned %d keys, want 2", len(keys))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("Keys() = %v, want a and b", keys)
	}
}
