package axion

import (
	"context"
	"time"

	"github.com/lxyqmc1529/axion/internal/backoff"
)

// maxRetryDelay caps a computed backoff wait regardless of policy.
const maxRetryDelay = 30 * time.Second

func backoffStrategy(kind BackoffKind) backoff.Strategy {
	if kind == BackoffLinear {
		return backoff.Linear{}
	}
	return backoff.Exponential{}
}

// newRetryMiddleware wraps the downstream chain in a bounded, strictly
// sequential retry loop. The first attempt runs immediately; each failure is
// retried while the attempt budget and the retryable predicate allow it, and
// only the final failure surfaces.
func newRetryMiddleware(c *Client) Middleware {
	return Middleware{
		Name:     MiddlewareRetry,
		Priority: priorityRetry,
		Handle: func(ctx context.Context, ex *Exchange, next Invoker) error {
			policy := ex.Request.Retry
			if policy == nil {
				policy = c.defaultRetry
			}
			if policy == nil || policy.Times <= 0 {
				return next(ctx, ex)
			}

			condition := policy.Condition
			if condition == nil {
				condition = IsRetryable
			}
			strategy := backoffStrategy(policy.Backoff)
			endpoint := endpointOf(ex.Request)

			var lastErr error
			for attempt := 0; ; attempt++ {
				if attempt > 0 {
					ex.Response = nil
				}
				err := next(ctx, ex)
				if err == nil {
					return nil
				}
				lastErr = err

				if attempt >= policy.Times || !condition(err) {
					return lastErr
				}

				delay := backoff.Clamp(strategy.Delay(attempt, policy.Delay), maxRetryDelay)
				c.debugLog(logRetries, "Scheduling retry",
					"requestID", ex.Request.ID, "attempt", attempt+1, "delay", delay, "error", err.Error())

				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return &Error{
						Kind:      KindCancelled,
						Message:   "cancelled while waiting to retry",
						Cause:     ctx.Err(),
						RequestID: ex.Request.ID,
						Method:    ex.Request.Method,
						URL:       ex.Request.URL,
						Attempt:   attempt + 1,
						Timestamp: time.Now(),
					}
				case <-timer.C:
				}

				if policy.OnRetry != nil {
					policy.OnRetry(lastErr, attempt+1)
				}
				ex.RetryCount++
				c.metrics.RecordRetry(ex.Request.Method, endpoint, attempt+1)
			}
		},
	}
}
