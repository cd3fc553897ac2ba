package axion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// pendingCall is one in-flight execution shared between callers of a key.
type pendingCall struct {
	done      chan struct{}
	resp      *Response
	err       error
	cancel    context.CancelFunc
	createdAt time.Time
	waiters   int
}

// LockManager deduplicates concurrent identical requests: the first caller of
// a key owns the execution, later callers share its outcome. At most one
// pending call exists per key; the entry is removed the instant it settles.
type LockManager struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

// NewLockManager returns an empty single-flight registry.
func NewLockManager() *LockManager {
	return &LockManager{calls: make(map[string]*pendingCall)}
}

// Do runs fn at most once per key across concurrent callers. The check for an
// existing call and the registration of a new one happen atomically under one
// lock, so two racing callers can never both own the key. The returned bool
// reports whether this caller owned the execution.
//
// A waiter abandoning on its own context does not disturb the owner; the
// owner's outcome still fans out to everyone else.
func (m *LockManager) Do(ctx context.Context, key string, fn func(context.Context) (*Response, error)) (*Response, error, bool) {
	m.mu.Lock()
	if c, ok := m.calls[key]; ok {
		c.waiters++
		m.mu.Unlock()

		select {
		case <-c.done:
			return c.resp, c.err, false
		case <-ctx.Done():
			return nil, ctx.Err(), false
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := &pendingCall{
		done:      make(chan struct{}),
		cancel:    cancel,
		createdAt: time.Now(),
		waiters:   1,
	}
	m.calls[key] = c
	m.mu.Unlock()

	resp, err := fn(runCtx)

	m.mu.Lock()
	delete(m.calls, key)
	c.resp = resp
	c.err = err
	close(c.done)
	m.mu.Unlock()
	cancel()

	return resp, err, true
}

// Pending reports whether an execution is currently in flight for key.
func (m *LockManager) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.calls[key]
	return ok
}

// CancelKey aborts the in-flight execution for key, if any. Every caller
// sharing it observes the cancelled outcome.
func (m *LockManager) CancelKey(key string) bool {
	m.mu.Lock()
	c, ok := m.calls[key]
	m.mu.Unlock()

	if !ok {
		return false
	}
	c.cancel()
	return true
}

// CancelAll aborts every in-flight execution.
func (m *LockManager) CancelAll() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.calls))
	for _, c := range m.calls {
		cancels = append(cancels, c.cancel)
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Len returns the number of keys currently in flight.
func (m *LockManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// defaultDedupKey derives the single-flight identity from method, URL, sorted
// params and a body digest for mutating verbs.
func defaultDedupKey(req *Request) string {
	h := fnv.New64a()
	h.Write([]byte(req.Method))
	h.Write([]byte(req.URL))
	if len(req.Params) > 0 {
		h.Write([]byte(req.Params.Encode()))
	}
	if len(req.Body) > 0 {
		sum := sha256.Sum256(req.Body)
		h.Write(sum[:])
	}
	return fmt.Sprintf("%x", h.Sum64())
}
