package axion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrQueueFull is returned when a submission would exceed the backlog limit.
	ErrQueueFull = errors.New("axion: queue full")

	// ErrCancelled is returned when a request is cancelled before settling.
	ErrCancelled = errors.New("axion: cancelled")

	// ErrCircuitOpen is returned when the circuit breaker rejects an attempt.
	ErrCircuitOpen = errors.New("axion: circuit open")
)

// ErrorKind tags an Error with its position in the closed failure taxonomy.
type ErrorKind int

const (
	// KindTransport covers network failures, timeouts and HTTP status failures.
	KindTransport ErrorKind = iota
	// KindValidation covers responses flagged by a caller-supplied validator.
	KindValidation
	// KindCapacity covers submissions rejected by a full backlog.
	KindCapacity
	// KindCancelled covers explicit cancellation and superseded calls.
	KindCancelled
	// KindWrapped is a generic envelope around an unclassified cause.
	KindWrapped
)

// String returns the kind's label.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindValidation:
		return "Validation"
	case KindCapacity:
		return "Capacity"
	case KindCancelled:
		return "Cancelled"
	case KindWrapped:
		return "Wrapped"
	default:
		return "Unknown"
	}
}

// Error is the single error type surfaced by the orchestrator. Dispatch on
// Kind rather than on concrete cause types.
type Error struct {
	Kind      ErrorKind
	Message   string
	Cause     error
	RequestID string
	Method    string
	URL       string
	Status    int
	Attempt   int
	Timestamp time.Time
	Duration  time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *Error by kind, and the package sentinels by the kind
// they correspond to, so errors.Is(err, ErrQueueFull) works on typed errors.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	switch target {
	case ErrQueueFull:
		return e.Kind == KindCapacity
	case ErrCancelled:
		return e.Kind == KindCancelled
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *Error) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Status > 0 {
		info += fmt.Sprintf("Status: %d\n", e.Status)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d\n", e.Attempt)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsRetryable is the default retry predicate. It accepts connection and
// network errors, timeouts, and HTTP statuses 408, 429 and 500-599.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindTransport:
			if e.Status == 0 {
				// Network-level failure without an HTTP status.
				return true
			}
			return retryableStatus(e.Status)
		case KindWrapped:
			return IsRetryable(e.Cause)
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

func retryableStatus(status int) bool {
	switch {
	case status == 408, status == 429:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}
