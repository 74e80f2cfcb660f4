package backoff

import (
	"testing"
	"time"
)

func TestConstant(t *testing.T) {
	t.Parallel()

	s := Constant(5 * time.Second)
	for _, attempt := range []int{1, 2, 10} {
		if d := s(attempt); d != 5*time.Second {
			t.Fatalf("Constant(5s)(%d) = %v, want 5s", attempt, d)
		}
	}
}

func TestLinear(t *testing.T) {
	t.Parallel()

	s := Linear(2*time.Second, 7*time.Second)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 6 * time.Second},
		{4, 7 * time.Second}, // capped
		{100, 7 * time.Second},
	}
	for _, tt := range tests {
		if d := s(tt.attempt); d != tt.want {
			t.Fatalf("Linear(%d) = %v, want %v", tt.attempt, d, tt.want)
		}
	}
}

func TestExponential(t *testing.T) {
	t.Parallel()

	s := Exponential(time.Second, 10*time.Second)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
	}
	for _, tt := range tests {
		if d := s(tt.attempt); d != tt.want {
			t.Fatalf("Exponential(%d) = %v, want %v", tt.attempt, d, tt.want)
		}
	}

	// Huge attempt numbers must not overflow.
	if d := s(500); d != 10*time.Second {
		t.Fatalf("Exponential(500) = %v, want cap", d)
	}
}

func TestExponentialUncapped(t *testing.T) {
	t.Parallel()

	s := Exponential(time.Second, 0)
	if d := s(4); d != 8*time.Second {
		t.Fatalf("uncapped Exponential(4) = %v, want 8s", d)
	}

	// Without a cap the delay saturates instead of going negative.
	if d := s(500); d <= 0 {
		t.Fatalf("uncapped Exponential(500) = %v, want positive", d)
	}
}

func TestFullJitterStaysInRange(t *testing.T) {
	t.Parallel()

	s := FullJitter(time.Second, 8*time.Second)
	for attempt := 1; attempt <= 6; attempt++ {
		for i := 0; i < 50; i++ {
			d := s(attempt)
			if d < 0 || d > 8*time.Second {
				t.Fatalf("FullJitter(%d) = %v, out of [0, 8s]", attempt, d)
			}
		}
	}
}

func TestDefaultNeverExceedsMinute(t *testing.T) {
	t.Parallel()

	s := Default()
	for attempt := 1; attempt <= 30; attempt++ {
		if d := s(attempt); d > time.Minute {
			t.Fatalf("Default()(%d) = %v, exceeds 1m", attempt, d)
		}
	}
}
