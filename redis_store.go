package axion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a CacheStore backed by a shared Redis instance, for deployments
// where multiple processes should see the same cached responses. Expiry is
// delegated to Redis TTLs and eviction to the server's maxmemory policy, so
// RedisStore intentionally does not implement Resize or AdjustTTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client, namespacing every key with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "axion:cache:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// Get fetches and decodes the entry for key.
func (s *RedisStore) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is unrecoverable; drop it.
		s.client.Del(ctx, s.key(key))
		return nil, false
	}
	if entry.Expired(time.Now()) {
		s.client.Del(ctx, s.key(key))
		return nil, false
	}
	return &entry, true
}

// Set encodes and stores the entry, letting Redis expire it at the TTL.
func (s *RedisStore) Set(ctx context.Context, key string, entry *CacheEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	s.client.Set(ctx, s.key(key), raw, entry.TTL)
}

// Delete removes the entry for key.
func (s *RedisStore) Delete(ctx context.Context, key string) {
	s.client.Del(ctx, s.key(key))
}

// Clear removes entries whose key contains pattern (every namespaced entry
// when pattern is empty) and returns the number removed.
func (s *RedisStore) Clear(ctx context.Context, pattern string) int {
	match := s.prefix + "*"
	if pattern != "" {
		match = s.prefix + "*" + pattern + "*"
	}

	removed := 0
	iter := s.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		if s.client.Del(ctx, iter.Val()).Val() > 0 {
			removed++
		}
	}
	return removed
}

// Len counts the namespaced entries via SCAN.
func (s *RedisStore) Len(ctx context.Context) int {
	n := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}

// Keys lists the entry keys with the namespace prefix stripped.
func (s *RedisStore) Keys(ctx context.Context) []string {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.prefix):])
	}
	return keys
}
