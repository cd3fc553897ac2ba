package axion

import (
	"context"
	"errors"
	"time"
)

// newClassifyMiddleware is the innermost handler. It turns every transport
// outcome into the typed error taxonomy before the retry and timing layers
// observe it: transport failures and non-2xx statuses become Transport
// errors, validator rejections become Validation errors, context
// cancellation becomes a Cancelled error, and anything unrecognized is
// wrapped. It never converts a failure into a success.
func newClassifyMiddleware(c *Client) Middleware {
	return Middleware{
		Name:     MiddlewareClassify,
		Priority: priorityClassify,
		Handle: func(ctx context.Context, ex *Exchange, next Invoker) error {
			req := ex.Request
			endpoint := endpointOf(req)

			err := next(ctx, ex)
			if err != nil {
				classified := classifyError(err, ex)
				c.metrics.RecordError(classified.Kind.String(), req.Method, endpoint)
				return classified
			}

			if resp := ex.Response; resp != nil && !ex.FromCache && resp.Status >= 400 {
				c.metrics.RecordError(KindTransport.String(), req.Method, endpoint)
				return &Error{
					Kind:      KindTransport,
					Message:   "request failed with status " + statusText(resp.Status),
					RequestID: req.ID,
					Method:    req.Method,
					URL:       req.URL,
					Status:    resp.Status,
					Attempt:   ex.RetryCount,
					Timestamp: time.Now(),
					Duration:  time.Since(ex.StartTime),
				}
			}

			if req.ValidateError != nil && ex.Response != nil {
				if verr := req.ValidateError(ex.Response); verr != nil {
					c.metrics.RecordError(KindValidation.String(), req.Method, endpoint)
					return &Error{
						Kind:      KindValidation,
						Message:   "response failed validation",
						Cause:     verr,
						RequestID: req.ID,
						Method:    req.Method,
						URL:       req.URL,
						Status:    ex.Response.Status,
						Attempt:   ex.RetryCount,
						Timestamp: time.Now(),
						Duration:  time.Since(ex.StartTime),
					}
				}
			}

			return nil
		},
	}
}

// classifyError maps an arbitrary failure into the closed taxonomy, tagging
// it with request diagnostics. Already-typed errors pass through untouched.
func classifyError(err error, ex *Exchange) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	kind := KindWrapped
	msg := "request failed"
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
		msg = "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTransport
		msg = "request timed out"
	case isNetworkError(err):
		kind = KindTransport
		msg = "network request failed"
	}

	return &Error{
		Kind:      kind,
		Message:   msg,
		Cause:     err,
		RequestID: ex.Request.ID,
		Method:    ex.Request.Method,
		URL:       ex.Request.URL,
		Attempt:   ex.RetryCount,
		Timestamp: time.Now(),
		Duration:  time.Since(ex.StartTime),
	}
}
