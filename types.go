package axion

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Response is the normalized outcome of a transport invocation.
type Response struct {
	Status int
	Header http.Header
	Data   []byte
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Transport issues a prepared request on the wire. Implementations must honor
// context cancellation; the orchestrator never interrupts a transport call by
// any other means.
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Execute implements Transport.
func (f TransportFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Priority levels for queue admission. Higher values are admitted sooner.
// A zero Priority on a Request is treated as the client's default.
const (
	PriorityLow    = 1
	PriorityNormal = 5
	PriorityHigh   = 10
)

// BackoffKind selects how retry delays grow between attempts.
type BackoffKind int

const (
	// BackoffExponential waits delay*2^n after the n-th failed attempt.
	BackoffExponential BackoffKind = iota
	// BackoffLinear waits delay*(n+1) after the n-th failed attempt.
	BackoffLinear
)

// RetryPolicy configures the retry middleware for a single request.
type RetryPolicy struct {
	// Times is the maximum number of extra attempts after the first.
	Times int
	// Delay is the base wait between attempts.
	Delay time.Duration
	// Backoff selects the growth curve for the wait.
	Backoff BackoffKind
	// Condition decides whether an error is worth retrying.
	// Nil means IsRetryable.
	Condition func(error) bool
	// OnRetry, if set, observes every scheduled retry. attempt is 1-based.
	OnRetry func(err error, attempt int)
}

// CachePolicy opts a request into response caching.
type CachePolicy struct {
	// TTL overrides the manager's default time-to-live when positive.
	TTL time.Duration
	// KeyFunc overrides the default cache key derivation.
	KeyFunc func(*Request) string
}

// Request describes a single orchestrated call. It is treated as immutable
// once handed to Client.Do; the client works on its own shallow copy.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	Body    []byte
	Header  http.Header
	Timeout time.Duration

	// ID identifies the request for cancellation and diagnostics. Filled
	// with a generated id when empty; the generated id is not reported
	// back, so callers that want to target the request with Cancel must
	// supply their own.
	ID string

	// Priority orders queue admission. Zero means the client default.
	Priority int

	// DedupKey identifies "the same" request for single-flight and debounce.
	// Derived from method, URL, params and body when empty.
	DedupKey string

	// Cache enables response caching for this request. Nil disables it.
	Cache *CachePolicy

	// Retry enables retries for this request. Nil falls back to the client
	// default policy, which may itself be nil (no retries).
	Retry *RetryPolicy

	// Lock collapses concurrent identical requests into one transport call.
	Lock bool

	// Debounce coalesces bursts of identical requests into one trailing call.
	Debounce bool

	// SkipMiddleware lists middleware names excluded from this request's chain.
	SkipMiddleware []string

	// ValidateError flags a logically failed response after transport success.
	ValidateError func(*Response) error
}

// Exchange carries a request through the middleware chain for one execution.
type Exchange struct {
	Request    *Request
	Response   *Response
	StartTime  time.Time
	RetryCount int
	FromCache  bool
}

// QueueConfig bounds the admission scheduler. Zero fields keep current values
// when passed to UpdateQueueConfig.
type QueueConfig struct {
	MaxConcurrent int
	MaxQueueSize  int
}

// QueueStats is a point-in-time snapshot of the admission scheduler.
type QueueStats struct {
	Pending       int
	Running       int
	MaxConcurrent int
	MaxQueueSize  int
}

// CacheConfig bounds the cache manager. Zero fields keep current values when
// passed to UpdateCacheConfig.
type CacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

// CacheStats reports cache occupancy and lifetime hit/miss counters. The
// counters survive Clear calls.
type CacheStats struct {
	Size      int
	MaxSize   int
	HitCount  uint64
	MissCount uint64
	HitRate   float64
	Keys      []string
}

// Option configures a Client at construction time.
type Option func(*Client)
