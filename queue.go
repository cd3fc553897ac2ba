package axion

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Scheduler gates execution by priority under a concurrency cap with a
// bounded backlog. Admission order is non-increasing priority with ties
// broken by arrival; completion order is up to the transport.
type Scheduler struct {
	mu            sync.Mutex
	waiting       waitQueue
	running       map[string]context.CancelFunc
	runningCount  int
	maxConcurrent int
	maxQueueSize  int
	seq           uint64
}

type waiter struct {
	id         string
	priority   int
	seq        uint64
	enqueuedAt time.Time
	ready      chan struct{}
	err        error
	granted    bool
	index      int
}

type waitQueue []*waiter

func (q waitQueue) Len() int { return len(q) }

func (q waitQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q waitQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *waitQueue) Push(x interface{}) {
	w := x.(*waiter)
	w.index = len(*q)
	*q = append(*q, w)
}

func (q *waitQueue) Pop() interface{} {
	old := *q
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*q = old[:n-1]
	return w
}

// NewScheduler returns a scheduler bounded by cfg. Zero fields default to
// 10 concurrent executions and a backlog of 100.
func NewScheduler(cfg QueueConfig) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	return &Scheduler{
		running:       make(map[string]context.CancelFunc),
		maxConcurrent: cfg.MaxConcurrent,
		maxQueueSize:  cfg.MaxQueueSize,
	}
}

// Acquire blocks until the request is admitted, the backlog rejects it, or
// ctx is done. On success it returns the execution context (cancelled by
// Cancel/CancelAll while running) and a release function that must be called
// exactly once when execution settles.
func (s *Scheduler) Acquire(ctx context.Context, id string, priority int) (context.Context, func(), error) {
	s.mu.Lock()

	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}

	// Fast path: a free slot with an empty backlog admits immediately.
	if s.runningCount < s.maxConcurrent && s.waiting.Len() == 0 {
		s.runningCount++
		runCtx, release := s.registerLocked(ctx, id)
		s.mu.Unlock()
		return runCtx, release, nil
	}

	if s.waiting.Len() >= s.maxQueueSize {
		s.mu.Unlock()
		return nil, nil, ErrQueueFull
	}

	s.seq++
	w := &waiter{
		id:         id,
		priority:   priority,
		seq:        s.seq,
		enqueuedAt: time.Now(),
		ready:      make(chan struct{}),
	}
	heap.Push(&s.waiting, w)
	s.mu.Unlock()

	select {
	case <-w.ready:
		if w.err != nil {
			return nil, nil, w.err
		}
		s.mu.Lock()
		runCtx, release := s.registerLocked(ctx, id)
		s.mu.Unlock()
		return runCtx, release, nil
	case <-ctx.Done():
		s.mu.Lock()
		if w.granted {
			// Grant raced with cancellation; give the slot back.
			s.runningCount--
			s.scheduleLocked()
			s.mu.Unlock()
			return nil, nil, ctx.Err()
		}
		// Cancel may have taken the waiter out of the heap already; its
		// index is invalidated on removal, so only dequeue it once.
		if w.index >= 0 {
			heap.Remove(&s.waiting, w.index)
		}
		s.mu.Unlock()
		return nil, nil, ctx.Err()
	}
}

// registerLocked derives the execution context and builds the release
// closure. The running slot must already be counted.
func (s *Scheduler) registerLocked(ctx context.Context, id string) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	s.running[id] = cancel

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.running, id)
			s.runningCount--
			s.scheduleLocked()
			s.mu.Unlock()
			cancel()
		})
	}
	return runCtx, release
}

func (s *Scheduler) scheduleLocked() {
	for s.runningCount < s.maxConcurrent && s.waiting.Len() > 0 {
		w := heap.Pop(&s.waiting).(*waiter)
		w.granted = true
		s.runningCount++
		close(w.ready)
	}
}

// Cancel aborts the request with the given id. A waiting request settles
// without ever executing; a running one has its execution context cancelled.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()

	for _, w := range s.waiting {
		if w.id == id {
			w.err = ErrCancelled
			heap.Remove(&s.waiting, w.index)
			close(w.ready)
			s.mu.Unlock()
			return true
		}
	}

	if cancel, ok := s.running[id]; ok {
		s.mu.Unlock()
		cancel()
		return true
	}

	s.mu.Unlock()
	return false
}

// CancelAll aborts every waiting and running request.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	for s.waiting.Len() > 0 {
		w := heap.Pop(&s.waiting).(*waiter)
		w.err = ErrCancelled
		close(w.ready)
	}
	cancels := make([]context.CancelFunc, 0, len(s.running))
	for _, cancel := range s.running {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// UpdateConfig changes the limits; zero fields keep current values. Raising
// MaxConcurrent admits waiting requests immediately.
func (s *Scheduler) UpdateConfig(cfg QueueConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.MaxConcurrent > 0 {
		s.maxConcurrent = cfg.MaxConcurrent
	}
	if cfg.MaxQueueSize > 0 {
		s.maxQueueSize = cfg.MaxQueueSize
	}
	s.scheduleLocked()
}

// Stats snapshots backlog depth, running count and current limits.
func (s *Scheduler) Stats() QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return QueueStats{
		Pending:       s.waiting.Len(),
		Running:       s.runningCount,
		MaxConcurrent: s.maxConcurrent,
		MaxQueueSize:  s.maxQueueSize,
	}
}
