// Package backoff provides delay calculation strategies for retry scheduling.
package backoff

import "time"

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Delay returns the wait duration after the given zero-based failed attempt.
	Delay(attempt int, base time.Duration) time.Duration
}

// Exponential doubles the base delay for every failed attempt:
// base, 2*base, 4*base, ...
type Exponential struct{}

// Delay implements the Strategy interface for exponential growth.
func (Exponential) Delay(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Cap the shift so the multiplication cannot overflow.
	if attempt > 30 {
		attempt = 30
	}

	d := base * time.Duration(int64(1)<<uint(attempt))
	if d < 0 || d < base {
		return 1 << 62
	}
	return d
}

// Linear grows the base delay proportionally to the attempt number:
// base, 2*base, 3*base, ...
type Linear struct{}

// Delay implements the Strategy interface for linear growth.
func (Linear) Delay(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := base * time.Duration(attempt+1)
	if d < 0 || d < base {
		return 1 << 62
	}
	return d
}

// Clamp bounds a computed delay to max. A non-positive max disables clamping.
func Clamp(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}
