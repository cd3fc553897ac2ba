package backoff

import (
	"testing"
	"time"
)

func TestExponentialDelay(t *testing.T) {
	tests := []struct {
		attempt int
		base    time.Duration
		want    time.Duration
	}{
		{0, time.Second, time.Second},
		{1, time.Second, 2 * time.Second},
		{2, time.Second, 4 * time.Second},
		{3, 100 * time.Millisecond, 800 * time.Millisecond},
		{-1, time.Second, time.Second},
	}

	s := Exponential{}
	for _, tt := range tests {
		if got := s.Delay(tt.attempt, tt.base); got != tt.want {
			t.Errorf("Exponential.Delay(%d, %v) = %v, want %v", tt.attempt, tt.base, got, tt.want)
		}
	}
}

func TestLinearDelay(t *testing.T) {
	tests := []struct {
		attempt int
		base    time.Duration
		want    time.Duration
	}{
		{0, time.Second, time.Second},
		{1, time.Second, 2 * time.Second},
		{2, 500 * time.Millisecond, 1500 * time.Millisecond},
		{-5, time.Second, time.Second},
	}

	s := Linear{}
	for _, tt := range tests {
		if got := s.Delay(tt.attempt, tt.base); got != tt.want {
			t.Errorf("Linear.Delay(%d, %v) = %v, want %v", tt.attempt, tt.base, got, tt.want)
		}
	}
}

func TestExponentialDelayOverflow(t *testing.T) {
	s := Exponential{}
	d := s.Delay(200, time.Hour)
	if d <= 0 {
		t.Errorf("expected positive delay on overflow, got %v", d)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5*time.Second, time.Second); got != time.Second {
		t.Errorf("Clamp(5s, 1s) = %v, want 1s", got)
	}
	if got := Clamp(time.Second, 5*time.Second); got != time.Second {
		t.Errorf("Clamp(1s, 5s) = %v, want 1s", got)
	}
	if got := Clamp(time.Second, 0); got != time.Second {
		t.Errorf("Clamp with zero max should not clamp, got %v", got)
	}
}
