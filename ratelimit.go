package axion

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// newRateLimitMiddleware paces transport attempts through the client's token
// bucket. It sits inside the retry loop so retried attempts are paced too.
func newRateLimitMiddleware(c *Client) Middleware {
	return Middleware{
		Name:     MiddlewareRateLimit,
		Priority: priorityRateLimit,
		Handle: func(ctx context.Context, ex *Exchange, next Invoker) error {
			if c.limiter == nil {
				return next(ctx, ex)
			}
			if err := c.limiter.Wait(ctx); err != nil {
				return &Error{
					Kind:      KindCancelled,
					Message:   "cancelled while waiting for rate limiter",
					Cause:     err,
					RequestID: ex.Request.ID,
					Method:    ex.Request.Method,
					URL:       ex.Request.URL,
					Timestamp: time.Now(),
				}
			}
			c.metrics.RecordRateLimiterTokens("default", c.limiter.Tokens())
			return next(ctx, ex)
		},
	}
}

func newRateLimiter(rps float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
