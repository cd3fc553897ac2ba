package axion

import (
	"context"
	"sync"
	"time"
)

// CircuitState is the state of the circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreakerConfig holds circuit breaker thresholds. Zero fields take
// defaults of 5 failures, 60s recovery and 2 successes.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// CircuitBreaker trips after consecutive transport failures and probes
// recovery through a half-open state. It is safe for concurrent use.
type CircuitBreaker struct {
	mu          sync.Mutex
	config      CircuitBreakerConfig
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewCircuitBreaker returns a closed breaker with the given thresholds.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Allow reports whether an attempt may proceed, moving an expired open
// breaker to half-open.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.config.RecoveryTimeout {
			cb.state = StateHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure counts a failed attempt, opening the breaker at the
// threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold {
		cb.state = StateOpen
	} else if cb.state == StateHalfOpen {
		cb.state = StateOpen
	}
}

// RecordSuccess counts a successful attempt, closing a half-open breaker at
// the threshold.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
		}
	} else if cb.state == StateClosed {
		cb.failures = 0
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// newCircuitBreakerMiddleware guards each attempt with the client's breaker.
// It sits inside the retry loop, so a tripped breaker fails attempts fast
// while the retry policy decides whether to keep probing.
func newCircuitBreakerMiddleware(c *Client) Middleware {
	return Middleware{
		Name:     MiddlewareCircuitBreaker,
		Priority: priorityCircuitBreaker,
		Handle: func(ctx context.Context, ex *Exchange, next Invoker) error {
			if c.breaker == nil {
				return next(ctx, ex)
			}

			if !c.breaker.Allow() {
				c.metrics.RecordCircuitBreakerState("default", c.breaker.State())
				c.metrics.RecordError(KindTransport.String(), ex.Request.Method, endpointOf(ex.Request))
				return &Error{
					Kind:      KindTransport,
					Message:   "circuit breaker is open",
					Cause:     ErrCircuitOpen,
					RequestID: ex.Request.ID,
					Method:    ex.Request.Method,
					URL:       ex.Request.URL,
					Timestamp: time.Now(),
				}
			}

			err := next(ctx, ex)
			if err != nil || (ex.Response != nil && ex.Response.Status >= 500) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
			c.metrics.RecordCircuitBreakerState("default", c.breaker.State())
			return err
		},
	}
}
