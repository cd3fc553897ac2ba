package axion

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Names of the built-in middlewares, usable in Request.SkipMiddleware and
// with Client.RemoveMiddleware.
const (
	MiddlewareTiming         = "timing"
	MiddlewareCache          = "cache"
	MiddlewareRetry          = "retry"
	MiddlewareRateLimit      = "ratelimit"
	MiddlewareCircuitBreaker = "circuitbreaker"
	MiddlewareClassify       = "classify"
)

// Priorities of the built-in middlewares. Lower runs earlier, which in onion
// terms means closer to the caller; the classification middleware sits
// innermost so every other layer observes typed errors.
const (
	priorityTiming         = 0
	priorityCache          = 10
	priorityRetry          = 20
	priorityRateLimit      = 30
	priorityCircuitBreaker = 40
	priorityClassify       = 100
)

// Invoker continues the middleware chain toward the transport.
type Invoker func(ctx context.Context, ex *Exchange) error

// Handler processes an exchange. It may call next to proceed, return early to
// short-circuit, or transform the error coming back from next.
type Handler func(ctx context.Context, ex *Exchange, next Invoker) error

// Middleware is a named, priority-ordered handler.
type Middleware struct {
	Name     string
	Priority int
	Handle   Handler
}

// Engine dispatches exchanges through an onion of registered middlewares and
// finally into a terminal invoker. It is safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	handlers []Middleware
}

// NewEngine returns an empty middleware engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Use registers a middleware. Re-registering an existing name replaces it in
// place; otherwise the middleware is inserted by ascending priority, after
// any existing middleware with the same priority.
func (e *Engine) Use(mw Middleware) {
	if mw.Handle == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.handlers {
		if e.handlers[i].Name == mw.Name {
			e.handlers[i] = mw
			sort.SliceStable(e.handlers, func(a, b int) bool {
				return e.handlers[a].Priority < e.handlers[b].Priority
			})
			return
		}
	}

	e.handlers = append(e.handlers, mw)
	sort.SliceStable(e.handlers, func(a, b int) bool {
		return e.handlers[a].Priority < e.handlers[b].Priority
	})
}

// Remove deregisters a middleware by name.
func (e *Engine) Remove(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.handlers {
		if e.handlers[i].Name == name {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the registered middleware names in execution order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.handlers))
	for i, mw := range e.handlers {
		names[i] = mw.Name
	}
	return names
}

// Execute runs the exchange through the active chain and into terminal.
// Middlewares named in the request's skip set are excluded. An error anywhere
// aborts the inward path and unwinds through every entered handler.
func (e *Engine) Execute(ctx context.Context, ex *Exchange, terminal Invoker) error {
	chain := e.activeChain(ex.Request)

	invoke := terminal
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		next := invoke
		invoke = func(ctx context.Context, ex *Exchange) error {
			return mw.Handle(ctx, ex, next)
		}
	}
	return invoke(ctx, ex)
}

func (e *Engine) activeChain(req *Request) []Middleware {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(req.SkipMiddleware) == 0 {
		chain := make([]Middleware, len(e.handlers))
		copy(chain, e.handlers)
		return chain
	}

	skip := make(map[string]struct{}, len(req.SkipMiddleware))
	for _, name := range req.SkipMiddleware {
		skip[name] = struct{}{}
	}

	chain := make([]Middleware, 0, len(e.handlers))
	for _, mw := range e.handlers {
		if _, ok := skip[mw.Name]; ok {
			continue
		}
		chain = append(chain, mw)
	}
	return chain
}

// newTimingMiddleware stamps the exchange start time and records request
// metrics and debug logs around the rest of the chain.
func newTimingMiddleware(c *Client) Middleware {
	return Middleware{
		Name:     MiddlewareTiming,
		Priority: priorityTiming,
		Handle: func(ctx context.Context, ex *Exchange, next Invoker) error {
			if ex.StartTime.IsZero() {
				ex.StartTime = time.Now()
			}
			endpoint := endpointOf(ex.Request)

			c.metrics.RecordRequestStart(ex.Request.Method, endpoint)
			c.debugLog(logRequests, "Starting request",
				"requestID", ex.Request.ID, "method", ex.Request.Method, "url", ex.Request.URL)

			err := next(ctx, ex)

			duration := time.Since(ex.StartTime)
			status := 0
			if ex.Response != nil {
				status = ex.Response.Status
			}
			c.metrics.RecordRequestEnd(ex.Request.Method, endpoint)
			c.metrics.RecordRequest(ex.Request.Method, endpoint, status, duration)

			if err != nil {
				c.debugLog(logRequests, "Request failed",
					"requestID", ex.Request.ID, "error", err.Error(), "duration", duration)
			} else {
				c.debugLog(logRequests, "Request finished",
					"requestID", ex.Request.ID, "status", status, "duration", duration, "fromCache", ex.FromCache)
			}
			return err
		},
	}
}
