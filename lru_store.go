package axion

import (
	"context"
	"strings"
	"sync"
	"time"
)

// LRUStore is the default in-memory CacheStore. It holds at most maxSize
// entries and evicts the least-recently-accessed one when inserting past
// capacity. Recency is tracked with a monotonically increasing access stamp.
type LRUStore struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*CacheEntry
	stamps  map[string]uint64
	clock   uint64
}

// NewLRUStore returns an empty store bounded to maxSize entries.
func NewLRUStore(maxSize int) *LRUStore {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &LRUStore{
		maxSize: maxSize,
		entries: make(map[string]*CacheEntry),
		stamps:  make(map[string]uint64),
	}
}

// Get returns the entry for key, bumping its recency and access counters.
// Entries past their TTL are removed and reported as absent.
func (s *LRUStore) Get(_ context.Context, key string) (*CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if entry.Expired(now) {
		s.removeLocked(key)
		return nil, false
	}

	s.clock++
	s.stamps[key] = s.clock
	entry.AccessCount++
	entry.LastAccessed = now
	return entry, true
}

// Set inserts or replaces the entry for key, evicting the entry with the
// smallest access stamp when the store is at capacity.
func (s *LRUStore) Set(_ context.Context, key string, entry *CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxSize {
		s.evictLocked()
	}

	s.clock++
	s.entries[key] = entry
	s.stamps[key] = s.clock
}

// Delete removes the entry for key.
func (s *LRUStore) Delete(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
}

// Clear removes entries whose key contains pattern; an empty pattern removes
// everything. Returns the number of entries removed.
func (s *LRUStore) Clear(_ context.Context, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern == "" {
		n := len(s.entries)
		s.entries = make(map[string]*CacheEntry)
		s.stamps = make(map[string]uint64)
		return n
	}

	n := 0
	for key := range s.entries {
		if strings.Contains(key, pattern) {
			s.removeLocked(key)
			n++
		}
	}
	return n
}

// Len returns the current number of entries.
func (s *LRUStore) Len(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys returns the current keys in no particular order.
func (s *LRUStore) Keys(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// Resize changes the capacity, evicting least-recently-accessed entries until
// the store fits.
func (s *LRUStore) Resize(_ context.Context, maxSize int) {
	if maxSize <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxSize = maxSize
	for len(s.entries) > s.maxSize {
		s.evictLocked()
	}
}

// AdjustTTL re-stamps unexpired entries with the new TTL and drops entries
// already past their old TTL rather than reviving them.
func (s *LRUStore) AdjustTTL(_ context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.entries {
		if entry.Expired(now) {
			s.removeLocked(key)
			continue
		}
		entry.TTL = ttl
	}
}

func (s *LRUStore) evictLocked() {
	var victim string
	var oldest uint64
	first := true
	for key, stamp := range s.stamps {
		if first || stamp < oldest {
			victim = key
			oldest = stamp
			first = false
		}
	}
	if !first {
		s.removeLocked(victim)
	}
}

func (s *LRUStore) removeLocked(key string) {
	delete(s.entries, key)
	delete(s.stamps, key)
}
