package axion

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

// WithQueueConfig bounds the admission scheduler.
func WithQueueConfig(cfg QueueConfig) Option {
	return func(c *Client) {
		c.queue = NewScheduler(cfg)
	}
}

// WithMaxConcurrent caps the number of simultaneously running requests.
func WithMaxConcurrent(n int) Option {
	return func(c *Client) {
		if c.queue == nil {
			c.queue = NewScheduler(QueueConfig{MaxConcurrent: n})
			return
		}
		c.queue.UpdateConfig(QueueConfig{MaxConcurrent: n})
	}
}

// WithMaxQueueSize caps the admission backlog.
func WithMaxQueueSize(n int) Option {
	return func(c *Client) {
		if c.queue == nil {
			c.queue = NewScheduler(QueueConfig{MaxQueueSize: n})
			return
		}
		c.queue.UpdateConfig(QueueConfig{MaxQueueSize: n})
	}
}

// WithCache configures the in-memory LRU cache.
func WithCache(cfg CacheConfig) Option {
	return func(c *Client) {
		size := cfg.MaxSize
		if size <= 0 {
			size = 100
		}
		c.cache = NewCacheManager(NewLRUStore(size), cfg)
	}
}

// WithCacheStore configures the cache on a custom backing store, such as a
// RedisStore shared between processes.
func WithCacheStore(store CacheStore, cfg CacheConfig) Option {
	return func(c *Client) {
		c.cache = NewCacheManager(store, cfg)
	}
}

// WithDefaultRetry sets the retry policy applied to requests that carry none.
func WithDefaultRetry(policy *RetryPolicy) Option {
	return func(c *Client) {
		c.defaultRetry = policy
	}
}

// WithDefaultPriority sets the priority assigned to requests submitted with
// a zero priority.
func WithDefaultPriority(p int) Option {
	return func(c *Client) {
		c.defaultPriority = p
	}
}

// WithDebounceDelay sets the quiet window for debounced requests.
func WithDebounceDelay(d time.Duration) Option {
	return func(c *Client) {
		c.debounceDelay = d
		c.debounce = NewDebounceManager(d)
	}
}

// WithRateLimit paces transport attempts with a token bucket of rps tokens
// per second and the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = newRateLimiter(rps, burst)
	}
}

// WithCircuitBreaker guards transport attempts with a circuit breaker.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breaker = NewCircuitBreaker(cfg)
	}
}

// WithMiddleware registers additional middlewares at construction time.
func WithMiddleware(mws ...Middleware) Option {
	return func(c *Client) {
		for _, mw := range mws {
			c.engine.Use(mw)
		}
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the logger receiving debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging to stderr.
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebug enables debug logging with the current configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(cfg *DebugConfig) Option {
	return func(c *Client) {
		c.debug = cfg
	}
}

// WithRequestIDGenerator sets the generator used for requests submitted
// without an id.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// OptionsFromEnv builds options from AXION_* environment variables, loading a
// .env file first when one is present:
//
//	AXION_MAX_CONCURRENT, AXION_MAX_QUEUE_SIZE,
//	AXION_CACHE_MAX_SIZE, AXION_CACHE_TTL,
//	AXION_DEBOUNCE_DELAY,
//	AXION_RATE_LIMIT_RPS, AXION_RATE_LIMIT_BURST,
//	AXION_DEBUG
//
// Durations use Go syntax ("5m", "300ms"). Unset variables leave the
// corresponding defaults alone.
func OptionsFromEnv() []Option {
	_ = godotenv.Load()

	var opts []Option

	queue := QueueConfig{}
	if n, ok := envInt("AXION_MAX_CONCURRENT"); ok {
		queue.MaxConcurrent = n
	}
	if n, ok := envInt("AXION_MAX_QUEUE_SIZE"); ok {
		queue.MaxQueueSize = n
	}
	if queue != (QueueConfig{}) {
		opts = append(opts, WithQueueConfig(queue))
	}

	cache := CacheConfig{}
	if n, ok := envInt("AXION_CACHE_MAX_SIZE"); ok {
		cache.MaxSize = n
	}
	if d, ok := envDuration("AXION_CACHE_TTL"); ok {
		cache.TTL = d
	}
	if cache != (CacheConfig{}) {
		opts = append(opts, WithCache(cache))
	}

	if d, ok := envDuration("AXION_DEBOUNCE_DELAY"); ok {
		opts = append(opts, WithDebounceDelay(d))
	}

	if rps, ok := envFloat("AXION_RATE_LIMIT_RPS"); ok {
		burst, _ := envInt("AXION_RATE_LIMIT_BURST")
		opts = append(opts, WithRateLimit(rps, burst))
	}

	if v := os.Getenv("AXION_DEBUG"); v == "1" || v == "true" {
		opts = append(opts, WithSimpleLogger())
	}

	return opts
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envDuration(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// ValidateConfiguration checks the client configuration and returns a
// Validation-kind error listing every problem found.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateTransport()...)
	problems = append(problems, c.validateQueueConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateDebounceConfig()...)
	problems = append(problems, c.validateRateLimitConfig()...)

	if len(problems) > 0 {
		return &Error{
			Kind:    KindValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}

func (c *Client) validateTransport() []string {
	if c.transport == nil {
		return []string{"transport cannot be nil"}
	}
	return nil
}

func (c *Client) validateQueueConfig() []string {
	var problems []string
	stats := c.queue.Stats()
	if stats.MaxConcurrent <= 0 {
		problems = append(problems, "maxConcurrent must be positive")
	}
	if stats.MaxQueueSize <= 0 {
		problems = append(problems, "maxQueueSize must be positive")
	}
	if stats.MaxConcurrent > 10000 {
		problems = append(problems, "maxConcurrent > 10000 may exhaust resources")
	}
	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string
	if c.cache != nil {
		if c.cache.defaultTTL <= 0 {
			problems = append(problems, "cache TTL must be positive")
		}
		if c.cache.defaultTTL > 24*time.Hour {
			problems = append(problems, "cache TTL > 24h may serve stale data")
		}
		if c.cache.maxSize <= 0 {
			problems = append(problems, "cache maxSize must be positive")
		}
	}
	return problems
}

func (c *Client) validateRetryConfig() []string {
	var problems []string
	if p := c.defaultRetry; p != nil {
		if p.Times < 0 {
			problems = append(problems, "retry times must be non-negative")
		}
		if p.Times > 100 {
			problems = append(problems, "retry times > 100 may cause excessive load")
		}
		if p.Delay < 0 {
			problems = append(problems, "retry delay must be non-negative")
		}
	}
	return problems
}

func (c *Client) validateDebounceConfig() []string {
	if c.debounceDelay < 0 {
		return []string{"debounce delay must be non-negative"}
	}
	return nil
}

func (c *Client) validateRateLimitConfig() []string {
	var problems []string
	if c.limiter != nil {
		if c.limiter.Limit() <= 0 && c.limiter.Limit() != rate.Inf {
			problems = append(problems, "rate limit must be positive")
		}
		if c.limiter.Burst() <= 0 {
			problems = append(problems, "rate limit burst must be positive")
		}
	}
	return problems
}
