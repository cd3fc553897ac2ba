package axion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client orchestrates outbound requests: it decides whether, when and how
// many times a call reaches the transport, composing debounce and
// single-flight collapsing, priority admission, the middleware chain with
// caching and retries, and typed error classification. It is safe for
// concurrent use.
type Client struct {
	transport Transport
	engine    *Engine
	queue     *Scheduler
	cache     *CacheManager
	locks     *LockManager
	debounce  *DebounceManager

	metrics *MetricsCollector
	logger  Logger
	debug   *DebugConfig

	limiter *rate.Limiter
	breaker *CircuitBreaker

	defaultRetry    *RetryPolicy
	defaultPriority int
	debounceDelay   time.Duration

	mu       sync.Mutex
	inflight map[string]*inflightHandle

	validationError error
}

// inflightHandle is the cancellation bookkeeping for one submitted request.
type inflightHandle struct {
	cancel   context.CancelFunc
	dedupKey string
	debounce bool
}

// New constructs a Client around transport using the provided functional
// options. A best effort validation is performed; call IsValid /
// ValidationError for errors.
func New(transport Transport, options ...Option) *Client {
	c := &Client{
		transport:       transport,
		engine:          NewEngine(),
		locks:           NewLockManager(),
		defaultPriority: PriorityNormal,
		debounceDelay:   300 * time.Millisecond,
		debug:           DefaultDebugConfig(),
		inflight:        make(map[string]*inflightHandle),
	}

	for _, option := range options {
		option(c)
	}

	if c.queue == nil {
		c.queue = NewScheduler(QueueConfig{})
	}
	if c.cache == nil {
		c.cache = NewCacheManager(NewLRUStore(100), CacheConfig{})
	}
	if c.debounce == nil {
		c.debounce = NewDebounceManager(c.debounceDelay)
	}

	c.engine.Use(newTimingMiddleware(c))
	c.engine.Use(newCacheMiddleware(c))
	c.engine.Use(newRetryMiddleware(c))
	c.engine.Use(newRateLimitMiddleware(c))
	c.engine.Use(newCircuitBreakerMiddleware(c))
	c.engine.Use(newClassifyMiddleware(c))

	if err := c.ValidateConfiguration(); err != nil {
		c.validationError = err
	}

	return c
}

// Do submits a request and blocks until it settles. Every call eventually
// returns either a response or exactly one typed *Error; requests collapsed
// by debouncing or single-flight share the outcome of the one execution that
// actually ran.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	r := c.prepare(req)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.Timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, r.Timeout)
		defer tcancel()
	}

	c.register(r, cancel)
	defer c.unregister(r.ID)

	run := func(runCtx context.Context) (*Response, error) {
		return c.execute(runCtx, r)
	}

	switch {
	case r.Debounce:
		c.metrics.RecordDebounceCoalesced(r.Method, endpointOf(r))
		c.debugLog(logDedup, "Debouncing request", "requestID", r.ID, "dedupKey", r.DedupKey)
		resp, err := c.debounce.Do(ctx, r.DedupKey, run)
		return resp, c.settleError(r, err)
	case r.Lock:
		resp, err, owner := c.locks.Do(ctx, r.DedupKey, run)
		if !owner {
			c.metrics.RecordSingleflightHit(r.Method, endpointOf(r))
			c.debugLog(logDedup, "Joined in-flight request", "requestID", r.ID, "dedupKey", r.DedupKey)
		}
		return resp, c.settleError(r, err)
	default:
		resp, err := run(ctx)
		return resp, c.settleError(r, err)
	}
}

// execute admits the request through the scheduler and runs the middleware
// chain down to the transport.
func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	runCtx, release, err := c.queue.Acquire(ctx, req.ID, req.Priority)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			c.metrics.RecordQueueRejection("default")
			c.debugLog(logQueue, "Backlog full, rejecting", "requestID", req.ID)
			return nil, &Error{
				Kind:      KindCapacity,
				Message:   "queue backlog is full",
				Cause:     ErrQueueFull,
				RequestID: req.ID,
				Method:    req.Method,
				URL:       req.URL,
				Timestamp: time.Now(),
			}
		}
		return nil, &Error{
			Kind:      KindCancelled,
			Message:   "cancelled before execution",
			Cause:     err,
			RequestID: req.ID,
			Method:    req.Method,
			URL:       req.URL,
			Timestamp: time.Now(),
		}
	}
	defer release()
	c.recordQueueDepth()

	ex := &Exchange{Request: req, StartTime: time.Now()}
	if err := c.engine.Execute(runCtx, ex, c.terminal); err != nil {
		return nil, err
	}
	return ex.Response, nil
}

// terminal invokes the transport at the center of the onion.
func (c *Client) terminal(ctx context.Context, ex *Exchange) error {
	resp, err := c.transport.Execute(ctx, ex.Request)
	if err != nil {
		return err
	}
	ex.Response = resp
	return nil
}

// prepare fills defaults on a private copy; the caller's request stays
// untouched.
func (c *Client) prepare(req *Request) *Request {
	r := *req
	if r.ID == "" {
		if c.debug != nil && c.debug.RequestIDGen != nil {
			r.ID = c.debug.RequestIDGen()
		} else {
			r.ID = uuid.NewString()
		}
	}
	if r.Priority == 0 {
		r.Priority = c.defaultPriority
	}
	if r.DedupKey == "" {
		r.DedupKey = defaultDedupKey(&r)
	}
	return &r
}

// settleError guarantees everything surfaced by Do is a typed *Error.
func (c *Client) settleError(req *Request, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	kind := KindWrapped
	msg := "request failed"
	if errors.Is(err, context.Canceled) {
		kind = KindCancelled
		msg = "request cancelled"
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTransport
		msg = "request timed out"
	}
	return &Error{
		Kind:      kind,
		Message:   msg,
		Cause:     err,
		RequestID: req.ID,
		Method:    req.Method,
		URL:       req.URL,
		Timestamp: time.Now(),
	}
}

func (c *Client) register(req *Request, cancel context.CancelFunc) {
	c.mu.Lock()
	c.inflight[req.ID] = &inflightHandle{
		cancel:   cancel,
		dedupKey: req.DedupKey,
		debounce: req.Debounce,
	}
	c.mu.Unlock()
}

func (c *Client) unregister(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
	c.recordQueueDepth()
}

// Cancel aborts the request with the given id wherever it currently is:
// waiting in the backlog, running in the transport, or parked in a debounce
// window. Cancelling a debounced request aborts the whole pending window for
// its key. Only requests submitted with an explicit ID are addressable here;
// generated ids are internal.
func (c *Client) Cancel(id string) bool {
	c.mu.Lock()
	handle, ok := c.inflight[id]
	c.mu.Unlock()

	if !ok {
		return false
	}

	if handle.debounce {
		c.debounce.CancelKey(handle.dedupKey)
	}
	c.queue.Cancel(id)
	handle.cancel()
	return true
}

// CancelAll aborts every outstanding request.
func (c *Client) CancelAll() {
	c.mu.Lock()
	handles := make([]*inflightHandle, 0, len(c.inflight))
	for _, h := range c.inflight {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	c.debounce.CancelAll()
	c.locks.CancelAll()
	c.queue.CancelAll()
	for _, h := range handles {
		h.cancel()
	}
}

// Use registers a middleware on the client's engine. Registering a name that
// already exists replaces it.
func (c *Client) Use(mw Middleware) {
	c.engine.Use(mw)
}

// RemoveMiddleware deregisters a middleware by name.
func (c *Client) RemoveMiddleware(name string) bool {
	return c.engine.Remove(name)
}

// CacheStats snapshots cache occupancy and lifetime hit/miss counters.
func (c *Client) CacheStats(ctx context.Context) CacheStats {
	return c.cache.Stats(ctx)
}

// ClearCache removes cached entries matching pattern (all entries when the
// pattern is empty) and returns the number removed.
func (c *Client) ClearCache(ctx context.Context, pattern string) int {
	n := c.cache.Clear(ctx, pattern)
	c.metrics.RecordCacheSize("default", c.cache.store.Len(ctx))
	return n
}

// UpdateCacheConfig resizes the cache and re-stamps TTLs; see
// CacheManager.UpdateConfig for the exact semantics.
func (c *Client) UpdateCacheConfig(ctx context.Context, cfg CacheConfig) {
	c.cache.UpdateConfig(ctx, cfg)
}

// QueueStats snapshots the admission scheduler.
func (c *Client) QueueStats() QueueStats {
	return c.queue.Stats()
}

// UpdateQueueConfig changes scheduler limits; raising MaxConcurrent admits
// waiting requests immediately.
func (c *Client) UpdateQueueConfig(cfg QueueConfig) {
	c.queue.UpdateConfig(cfg)
	c.recordQueueDepth()
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) recordQueueDepth() {
	if c.metrics == nil {
		return
	}
	stats := c.queue.Stats()
	c.metrics.RecordQueueDepth("default", stats.Pending, stats.Running)
}

func (c *Client) debugLog(flag debugFlag, msg string, kv ...interface{}) {
	if c.logger == nil || !c.debug.allows(flag) {
		return
	}
	c.logger.Debug(msg, kv...)
}
