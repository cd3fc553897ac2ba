// Package axion is a client-side request orchestration layer that sits in
// front of an HTTP transport and decides whether, when, and how many times an
// outbound call is actually made:
//
//   - Priority admission scheduling with a concurrency cap and bounded backlog
//   - Onion-style middleware chain with named, priority-ordered handlers
//   - TTL response caching over a pluggable LRU or Redis store
//   - Single-flight collapsing of concurrent identical requests
//   - Trailing debounce of bursty repeated requests
//   - Bounded sequential retries with linear or exponential backoff
//   - Circuit breaker and token-bucket pacing of transport attempts
//   - A closed, kind-tagged error taxonomy with request diagnostics
//   - Prometheus metrics and lightweight structured debug logging
//
// The package never speaks HTTP itself; it orchestrates calls to an opaque
// Transport and classifies its outcomes. HTTPTransport is a thin net/http
// adapter for real use; any Transport implementation works.
//
// Typical usage:
//
//	client := axion.New(axion.NewHTTPTransport(nil),
//	    axion.WithMaxConcurrent(8),
//	    axion.WithMaxQueueSize(64),
//	    axion.WithCache(axion.CacheConfig{MaxSize: 500, TTL: time.Minute}),
//	    axion.WithMetrics(),
//	)
//	resp, err := client.Do(ctx, &axion.Request{
//	    Method:   "GET",
//	    URL:      "https://api.example.com/data",
//	    Priority: axion.PriorityHigh,
//	    Cache:    &axion.CachePolicy{},
//	    Retry:    &axion.RetryPolicy{Times: 3, Delay: 200 * time.Millisecond},
//	    Lock:     true,
//	})
//
// A single Client instance is safe for concurrent use and carries no hidden
// process-wide state; construct one per transport and dispose of it with
// CancelAll when done.
package axion
