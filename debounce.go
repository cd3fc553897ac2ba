package axion

import (
	"context"
	"sync"
	"time"
)

// debounceCall collects callers of a key during one quiet window and runs the
// trailing executor once the window elapses without a new call.
type debounceCall struct {
	timer     *time.Timer
	done      chan struct{}
	resp      *Response
	err       error
	cancel    context.CancelFunc
	fn        func(context.Context) (*Response, error)
	lastCall  time.Time
	cancelled bool
}

// DebounceManager coalesces bursts of identical requests into one trailing
// execution per key. Every arrival restarts the key's timer; all callers of
// the window share the trailing execution's outcome.
type DebounceManager struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*debounceCall
	active  map[string]*debounceCall
}

// NewDebounceManager returns a manager with the given quiet window.
func NewDebounceManager(delay time.Duration) *DebounceManager {
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	return &DebounceManager{
		delay:   delay,
		pending: make(map[string]*debounceCall),
		active:  make(map[string]*debounceCall),
	}
}

// Do registers a call for key. If a window is already open, the timer
// restarts and this call joins the existing fan-out; the latest executor wins
// the trailing run. Each caller's own context only abandons its wait, never
// the shared execution.
func (m *DebounceManager) Do(ctx context.Context, key string, fn func(context.Context) (*Response, error)) (*Response, error) {
	m.mu.Lock()
	c, ok := m.pending[key]
	if ok {
		c.fn = fn
		c.lastCall = time.Now()
		c.timer.Reset(m.delay)
	} else {
		c = &debounceCall{done: make(chan struct{}), fn: fn, lastCall: time.Now()}
		call := c
		c.timer = time.AfterFunc(m.delay, func() { m.fire(key, call) })
		m.pending[key] = c
	}
	m.mu.Unlock()

	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fire runs the trailing executor once the window elapsed. The execution
// context is detached from any single caller; it is cancelled only through
// CancelKey/CancelAll.
func (m *DebounceManager) fire(key string, c *debounceCall) {
	m.mu.Lock()
	if m.pending[key] != c || c.cancelled {
		m.mu.Unlock()
		return
	}
	// A caller that joined while this fire was waiting on the mutex has
	// extended the quiet window; re-arm for the remainder instead of
	// executing early. Resetting a timer that already fired does not stop
	// the in-progress callback, so the arrival time is the authority.
	if remaining := m.delay - time.Since(c.lastCall); remaining > 0 {
		call := c
		c.timer = time.AfterFunc(remaining, func() { m.fire(key, call) })
		m.mu.Unlock()
		return
	}
	delete(m.pending, key)
	m.active[key] = c
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	fn := c.fn
	m.mu.Unlock()

	resp, err := fn(runCtx)

	m.mu.Lock()
	if m.active[key] == c {
		delete(m.active, key)
	}
	c.resp = resp
	c.err = err
	close(c.done)
	m.mu.Unlock()
	cancel()
}

// CancelKey aborts the key's pending window or running execution. Callers of
// a cancelled window settle with ErrCancelled; a running execution settles
// with whatever the executor returns for the cancelled context.
func (m *DebounceManager) CancelKey(key string) bool {
	m.mu.Lock()
	if c, ok := m.pending[key]; ok {
		c.cancelled = true
		c.timer.Stop()
		delete(m.pending, key)
		c.err = &Error{Kind: KindCancelled, Message: "debounce window cancelled", Cause: ErrCancelled, Timestamp: time.Now()}
		close(c.done)
		m.mu.Unlock()
		return true
	}
	if c, ok := m.active[key]; ok {
		cancel := c.cancel
		m.mu.Unlock()
		cancel()
		return true
	}
	m.mu.Unlock()
	return false
}

// CancelAll aborts every pending window and running execution.
func (m *DebounceManager) CancelAll() {
	m.mu.Lock()
	var cancels []context.CancelFunc
	for key, c := range m.pending {
		c.cancelled = true
		c.timer.Stop()
		delete(m.pending, key)
		c.err = &Error{Kind: KindCancelled, Message: "debounce window cancelled", Cause: ErrCancelled, Timestamp: time.Now()}
		close(c.done)
	}
	for _, c := range m.active {
		if c.cancel != nil {
			cancels = append(cancels, c.cancel)
		}
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Len returns the number of open windows.
func (m *DebounceManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
