package axion

import (
	"context"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// CacheEntry is a cached response plus bookkeeping metadata.
type CacheEntry struct {
	Key          string        `json:"key"`
	Status       int           `json:"status"`
	Header       http.Header   `json:"header,omitempty"`
	Data         []byte        `json:"data"`
	CreatedAt    time.Time     `json:"created_at"`
	TTL          time.Duration `json:"ttl"`
	AccessCount  int64         `json:"access_count"`
	LastAccessed time.Time     `json:"last_accessed"`
}

// Expired reports whether the entry is past its time-to-live at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// Response rebuilds a Response from the cached payload.
func (e *CacheEntry) Response() *Response {
	return &Response{Status: e.Status, Header: e.Header, Data: e.Data}
}

// CacheStore is the backing store used by the cache manager. LRUStore is the
// in-memory default; RedisStore backs the cache with a shared Redis instance.
type CacheStore interface {
	Get(ctx context.Context, key string) (*CacheEntry, bool)
	Set(ctx context.Context, key string, entry *CacheEntry)
	Delete(ctx context.Context, key string)
	// Clear removes entries whose key contains pattern; an empty pattern
	// removes everything. It returns the number of entries removed.
	Clear(ctx context.Context, pattern string) int
	Len(ctx context.Context) int
	Keys(ctx context.Context) []string
}

// Optional store capabilities used by UpdateConfig. Stores that do not
// implement them (such as RedisStore, where the server owns eviction) are
// left untouched by the corresponding config changes.
type resizableStore interface {
	Resize(ctx context.Context, maxSize int)
}

type ttlAdjustableStore interface {
	// AdjustTTL re-stamps the TTL of entries that have not yet expired and
	// drops entries already past their old TTL.
	AdjustTTL(ctx context.Context, ttl time.Duration)
}

// CacheManager layers TTL semantics, key derivation and hit/miss statistics
// over a CacheStore.
type CacheManager struct {
	store      CacheStore
	defaultTTL time.Duration
	maxSize    int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCacheManager wraps store with the given bounds. A zero TTL defaults to
// five minutes; a zero MaxSize defaults to 100 entries.
func NewCacheManager(store CacheStore, cfg CacheConfig) *CacheManager {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}
	return &CacheManager{
		store:      store,
		defaultTTL: cfg.TTL,
		maxSize:    cfg.MaxSize,
	}
}

// Get returns a fresh entry for key. Stale entries are evicted on the spot
// and counted as misses.
func (m *CacheManager) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	entry, ok := m.store.Get(ctx, key)
	if ok && entry.Expired(time.Now()) {
		m.store.Delete(ctx, key)
		ok = false
	}
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return entry, true
}

// Set stores a response under key. A non-positive ttl uses the default.
func (m *CacheManager) Set(ctx context.Context, key string, resp *Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := time.Now()
	m.store.Set(ctx, key, &CacheEntry{
		Key:          key,
		Status:       resp.Status,
		Header:       resp.Header,
		Data:         resp.Data,
		CreatedAt:    now,
		TTL:          ttl,
		LastAccessed: now,
	})
}

// Clear empties entries matching pattern (all entries when pattern is empty)
// and returns the number removed. Hit/miss counters are lifetime statistics
// and persist across clears.
func (m *CacheManager) Clear(ctx context.Context, pattern string) int {
	return m.store.Clear(ctx, pattern)
}

// Stats snapshots occupancy and lifetime counters.
func (m *CacheManager) Stats(ctx context.Context) CacheStats {
	hits := m.hits.Load()
	misses := m.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Size:      m.store.Len(ctx),
		MaxSize:   m.maxSize,
		HitCount:  hits,
		MissCount: misses,
		HitRate:   rate,
		Keys:      m.store.Keys(ctx),
	}
}

// UpdateConfig resizes the store and re-stamps TTLs where the backing store
// supports it. Shrinking evicts down to the new capacity; a new TTL extends
// unexpired entries and drops already-expired ones rather than reviving them.
func (m *CacheManager) UpdateConfig(ctx context.Context, cfg CacheConfig) {
	if cfg.MaxSize > 0 {
		m.maxSize = cfg.MaxSize
		if r, ok := m.store.(resizableStore); ok {
			r.Resize(ctx, cfg.MaxSize)
		}
	}
	if cfg.TTL > 0 {
		m.defaultTTL = cfg.TTL
		if a, ok := m.store.(ttlAdjustableStore); ok {
			a.AdjustTTL(ctx, cfg.TTL)
		}
	}
}

func (m *CacheManager) keyFor(req *Request) string {
	if req.Cache != nil && req.Cache.KeyFunc != nil {
		return req.Cache.KeyFunc(req)
	}
	return DefaultCacheKey(req)
}

// DefaultCacheKey derives a deterministic key from method, URL, sorted query
// parameters and a digest of the body.
func DefaultCacheKey(req *Request) string {
	key := req.Method + " " + req.URL
	if len(req.Params) > 0 {
		// url.Values.Encode sorts by key, keeping the composition stable.
		key += "?" + req.Params.Encode()
	}
	if len(req.Body) > 0 {
		h := fnv.New64a()
		h.Write(req.Body)
		key += "#" + strconv.FormatUint(h.Sum64(), 16)
	}
	return key
}

// newCacheMiddleware serves eligible requests from the cache and stores
// successful responses. Only GET requests with a cache policy participate,
// and only 2xx responses are stored.
func newCacheMiddleware(c *Client) Middleware {
	return Middleware{
		Name:     MiddlewareCache,
		Priority: priorityCache,
		Handle: func(ctx context.Context, ex *Exchange, next Invoker) error {
			req := ex.Request
			if req.Cache == nil || req.Method != http.MethodGet {
				return next(ctx, ex)
			}

			endpoint := endpointOf(req)
			key := c.cache.keyFor(req)

			if entry, ok := c.cache.Get(ctx, key); ok {
				ex.Response = entry.Response()
				ex.FromCache = true
				c.metrics.RecordCacheHit(req.Method, endpoint)
				c.debugLog(logCache, "Cache hit", "requestID", req.ID, "cacheKey", key)
				return nil
			}
			c.metrics.RecordCacheMiss(req.Method, endpoint)
			c.debugLog(logCache, "Cache miss", "requestID", req.ID, "cacheKey", key)

			if err := next(ctx, ex); err != nil {
				return err
			}

			if ex.Response.OK() {
				c.cache.Set(ctx, key, ex.Response, req.Cache.TTL)
				c.metrics.RecordCacheSize("default", c.cache.store.Len(ctx))
				c.debugLog(logCache, "Response cached", "requestID", req.ID, "cacheKey", key)
			}
			return nil
		},
	}
}
