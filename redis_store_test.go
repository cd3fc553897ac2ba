package axion

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newTestRedisStore connects to the instance named by REDIS_ADDR, skipping the
// test when none is available. Each test gets its own key namespace.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}

	store := NewRedisStore(client, "axion:test:"+uuid.NewString()+":")
	t.Cleanup(func() {
		store.Clear(context.Background(), "")
		client.Close()
	})
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if _, ok := store.Get(ctx, "missing"); ok {
		t.Error("Get on empty namespace should miss")
	}

	store.Set(ctx, "k", newEntry("k", time.Minute))
	entry, ok := store.Get(ctx, "k")
	if !ok {
		t.Fatal("Get should find the stored entry")
	}
	if string(entry.Data) != "k" || entry.Status != 200 {
		t.Errorf("entry = %+v", entry)
	}

	store.Delete(ctx, "k")
	if _, ok := store.Get(ctx, "k"); ok {
		t.Error("entry should be gone after Delete")
	}
}

func TestRedisStoreClearPattern(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	store.Set(ctx, "users:1", newEntry("u1", time.Minute))
	store.Set(ctx, "users:2", newEntry("u2", time.Minute))
	store.Set(ctx, "orders:1", newEntry("o1", time.Minute))

	if n := store.Clear(ctx, "users"); n != 2 {
		t.Errorf("Clear(users) = %d, want 2", n)
	}
	if got := store.Len(ctx); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}

	keys := store.Keys(ctx)
	if len(keys) != 1 || keys[0] != "orders:1" {
		t.Errorf("Keys = %v, want [orders:1]", keys)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	store.Set(ctx, "short", newEntry("short", 50*time.Millisecond))
	if _, ok := store.Get(ctx, "short"); !ok {
		t.Fatal("entry should be fresh immediately after Set")
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := store.Get(ctx, "short"); ok {
		t.Error("entry should have expired")
	}
}

func TestRedisStoreWithCacheManager(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	m := NewCacheManager(store, CacheConfig{TTL: time.Minute, MaxSize: 100})

	m.Set(ctx, "k", &Response{Status: 200, Data: []byte("payload")}, 0)
	entry, ok := m.Get(ctx, "k")
	if !ok {
		t.Fatal("manager Get should hit")
	}
	if string(entry.Response().Data) != "payload" {
		t.Errorf("payload = %q", entry.Response().Data)
	}

	stats := m.Stats(ctx)
	if stats.Size != 1 || stats.HitCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
