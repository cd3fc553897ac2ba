package axion

import (
	"errors"
	"testing"
	"time"
)

func TestOptionsConfigureClient(t *testing.T) {
	client := New(okTransport(),
		WithQueueConfig(QueueConfig{MaxConcurrent: 3, MaxQueueSize: 7}),
		WithCache(CacheConfig{MaxSize: 50, TTL: 2 * time.Minute}),
		WithDefaultPriority(PriorityHigh),
		WithDebounceDelay(100*time.Millisecond),
	)

	stats := client.QueueStats()
	if stats.MaxConcurrent != 3 || stats.MaxQueueSize != 7 {
		t.Errorf("queue = %d/%d, want 3/7", stats.MaxConcurrent, stats.MaxQueueSize)
	}
	if client.cache.maxSize != 50 || client.cache.defaultTTL != 2*time.Minute {
		t.Errorf("cache = %d/%v, want 50/2m", client.cache.maxSize, client.cache.defaultTTL)
	}
	if client.defaultPriority != PriorityHigh {
		t.Errorf("defaultPriority = %d, want %d", client.defaultPriority, PriorityHigh)
	}
	if client.debounceDelay != 100*time.Millisecond {
		t.Errorf("debounceDelay = %v, want 100ms", client.debounceDelay)
	}
	if !client.IsValid() {
		t.Errorf("client should be valid, got %v", client.ValidationError())
	}
}

func TestWithMaxConcurrentBeforeAndAfterQueue(t *testing.T) {
	a := New(okTransport(), WithMaxConcurrent(2))
	if got := a.QueueStats().MaxConcurrent; got != 2 {
		t.Errorf("MaxConcurrent = %d, want 2", got)
	}

	b := New(okTransport(),
		WithQueueConfig(QueueConfig{MaxConcurrent: 1, MaxQueueSize: 5}),
		WithMaxConcurrent(4),
	)
	stats := b.QueueStats()
	if stats.MaxConcurrent != 4 || stats.MaxQueueSize != 5 {
		t.Errorf("queue = %d/%d, want 4/5", stats.MaxConcurrent, stats.MaxQueueSize)
	}
}

func TestWithRequestIDGenerator(t *testing.T) {
	client := New(okTransport(), WithRequestIDGenerator(func() string { return "fixed-id" }))
	r := client.prepare(&Request{Method: "GET", URL: "https://x"})
	if r.ID != "fixed-id" {
		t.Errorf("ID = %q, want fixed-id", r.ID)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("AXION_MAX_CONCURRENT", "3")
	t.Setenv("AXION_MAX_QUEUE_SIZE", "9")
	t.Setenv("AXION_CACHE_MAX_SIZE", "25")
	t.Setenv("AXION_CACHE_TTL", "90s")
	t.Setenv("AXION_DEBOUNCE_DELAY", "150ms")
	t.Setenv("AXION_RATE_LIMIT_RPS", "20")
	t.Setenv("AXION_RATE_LIMIT_BURST", "5")

	client := New(okTransport(), OptionsFromEnv()...)

	stats := client.QueueStats()
	if stats.MaxConcurrent != 3 || stats.MaxQueueSize != 9 {
		t.Errorf("queue = %d/%d, want 3/9", stats.MaxConcurrent, stats.MaxQueueSize)
	}
	if client.cache.maxSize != 25 || client.cache.defaultTTL != 90*time.Second {
		t.Errorf("cache = %d/%v, want 25/90s", client.cache.maxSize, client.cache.defaultTTL)
	}
	if client.debounceDelay != 150*time.Millisecond {
		t.Errorf("debounceDelay = %v, want 150ms", client.debounceDelay)
	}
	if client.limiter == nil {
		t.Fatal("rate limiter should be configured")
	}
	if client.limiter.Burst() != 5 {
		t.Errorf("burst = %d, want 5", client.limiter.Burst())
	}
}

func TestOptionsFromEnvIgnoresUnset(t *testing.T) {
	client := New(okTransport(), OptionsFromEnv()...)
	stats := client.QueueStats()
	if stats.MaxConcurrent != 10 || stats.MaxQueueSize != 100 {
		t.Errorf("queue = %d/%d, want defaults 10/100", stats.MaxConcurrent, stats.MaxQueueSize)
	}
	if client.limiter != nil {
		t.Error("rate limiter should stay unset")
	}
}

func TestOptionsFromEnvIgnoresMalformed(t *testing.T) {
	t.Setenv("AXION_MAX_CONCURRENT", "many")
	t.Setenv("AXION_CACHE_TTL", "soon")

	client := New(okTransport(), OptionsFromEnv()...)
	stats := client.QueueStats()
	if stats.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, malformed values must be ignored", stats.MaxConcurrent)
	}
}

func TestValidateConfigurationFlagsBadRetry(t *testing.T) {
	client := New(okTransport(), WithDefaultRetry(&RetryPolicy{Times: -1, Delay: -time.Second}))
	if client.IsValid() {
		t.Fatal("negative retry settings should fail validation")
	}
	err := client.ValidationError()
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != KindValidation {
		t.Errorf("validation error = %v, want Validation kind", err)
	}
}

func TestValidateConfigurationNilTransport(t *testing.T) {
	client := New(nil)
	if client.IsValid() {
		t.Fatal("nil transport should fail validation")
	}
}
