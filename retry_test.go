package axion

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestRetryExhaustsBudget(t *testing.T) {
	transport := &countingTransport{fn: func(_ context.Context, _ *Request) (*Response, error) {
		return &Response{Status: http.StatusInternalServerError}, nil
	}}
	client := New(transport)

	_, err := client.Do(context.Background(), &Request{
		Method: "GET",
		URL:    "https://api.example.com/flaky",
		Retry:  &RetryPolicy{Times: 3, Delay: 2 * time.Millisecond},
	})
	if err == nil {
		t.Fatal("Do() should surface the final failure")
	}
	if got := transport.calls.Load(); got != 4 {
		t.Errorf("transport calls = %d, want 1 initial + 3 retries", got)
	}
	var typed *Error
	if !errors.As(err, &typed) || typed.Status != http.StatusInternalServerError {
		t.Errorf("final error = %v, want the last 500", err)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	transport := &countingTransport{}
	transport.fn = func(_ context.Context, _ *Request) (*Response, error) {
		if transport.calls.Load() < 3 {
			return &Response{Status: http.StatusBadGateway}, nil
		}
		return &Response{Status: http.StatusOK, Data: []byte("finally")}, nil
	}
	client := New(transport)

	resp, err := client.Do(context.Background(), &Request{
		Method: "GET",
		URL:    "https://api.example.com/flaky",
		Retry:  &RetryPolicy{Times: 5, Delay: 2 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(resp.Data) != "finally" {
		t.Errorf("Data = %q, want the successful attempt's payload", resp.Data)
	}
	if got := transport.calls.Load(); got != 3 {
		t.Errorf("transport calls = %d, want 3", got)
	}
}

func TestRetryRespectsCondition(t *testing.T) {
	transport := &countingTransport{fn: func(_ context.Context, _ *Request) (*Response, error) {
		return &Response{Status: http.StatusInternalServerError}, nil
	}}
	client := New(transport)

	_, err := client.Do(context.Background(), &Request{
		Method: "GET",
		URL:    "https://api.example.com/x",
		Retry: &RetryPolicy{
			Times:     3,
			Delay:     2 * time.Millisecond,
			Condition: func(error) bool { return false },
		},
	})
	if err == nil {
		t.Fatal("Do() should fail")
	}
	if got := transport.calls.Load(); got != 1 {
		t.Errorf("transport calls = %d, condition=false must stop retries", got)
	}
}

func TestRetryDefaultPredicateSkipsClientErrors(t *testing.T) {
	transport := &countingTransport{fn: func(_ context.Context, _ *Request) (*Response, error) {
		return &Response{Status: http.StatusBadRequest}, nil
	}}
	client := New(transport)

	_, err := client.Do(context.Background(), &Request{
		Method: "GET",
		URL:    "https://api.example.com/x",
		Retry:  &RetryPolicy{Times: 3, Delay: 2 * time.Millisecond},
	})
	if err == nil {
		t.Fatal("Do() should fail")
	}
	if got := transport.calls.Load(); got != 1 {
		t.Errorf("transport calls = %d, a 400 is not retryable", got)
	}
}

func TestRetryOnRetryObserver(t *testing.T) {
	transport := &countingTransport{fn: func(_ context.Context, _ *Request) (*Response, error) {
		return &Response{Status: http.StatusServiceUnavailable}, nil
	}}
	client := New(transport)

	var mu sync.Mutex
	var attempts []int
	_, err := client.Do(context.Background(), &Request{
		Method: "GET",
		URL:    "https://api.example.com/x",
		Retry: &RetryPolicy{
			Times: 2,
			Delay: 2 * time.Millisecond,
			OnRetry: func(err error, attempt int) {
				mu.Lock()
				attempts = append(attempts, attempt)
				mu.Unlock()
				if err == nil {
					t.Error("OnRetry should observe the failure")
				}
			},
		},
	})
	if err == nil {
		t.Fatal("Do() should fail")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestRetryCancelledWhileWaiting(t *testing.T) {
	transport := &countingTransport{fn: func(_ context.Context, _ *Request) (*Response, error) {
		return &Response{Status: http.StatusInternalServerError}, nil
	}}
	client := New(transport)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := client.Do(ctx, &Request{
		Method: "GET",
		URL:    "https://api.example.com/x",
		Retry:  &RetryPolicy{Times: 5, Delay: 10 * time.Second},
	})
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != KindCancelled {
		t.Fatalf("error = %v, want Cancelled kind", err)
	}
	if got := transport.calls.Load(); got != 1 {
		t.Errorf("transport calls = %d, want 1 before the cancelled wait", got)
	}
}

func TestRetryDefaultPolicyFromClient(t *testing.T) {
	transport := &countingTransport{fn: func(_ context.Context, _ *Request) (*Response, error) {
		return &Response{Status: http.StatusInternalServerError}, nil
	}}
	client := New(transport, WithDefaultRetry(&RetryPolicy{Times: 2, Delay: 2 * time.Millisecond}))

	_, err := client.Do(context.Background(), &Request{Method: "GET", URL: "https://api.example.com/x"})
	if err == nil {
		t.Fatal("Do() should fail")
	}
	if got := transport.calls.Load(); got != 3 {
		t.Errorf("transport calls = %d, want the client default policy applied", got)
	}
}

func TestRetryNoPolicyMeansSingleAttempt(t *testing.T) {
	transport := &countingTransport{fn: func(_ context.Context, _ *Request) (*Response, error) {
		return &Response{Status: http.StatusInternalServerError}, nil
	}}
	client := New(transport)

	_, err := client.Do(context.Background(), &Request{Method: "GET", URL: "https://api.example.com/x"})
	if err == nil {
		t.Fatal("Do() should fail")
	}
	if got := transport.calls.Load(); got != 1 {
		t.Errorf("transport calls = %d, want exactly 1", got)
	}
}
