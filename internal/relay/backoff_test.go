package relay

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second}, // capped
		{7, 60 * time.Second},
		{40, 60 * time.Second},
		{-1, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Monotonic(t *testing.T) {
	b := Backoff{Unit: 3 * time.Millisecond, Max: time.Second}
	prev := time.Duration(0)
	for attempt := 1; attempt <= 30; attempt++ {
		d := b.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v < Delay(%d) = %v", attempt, d, attempt-1, prev)
		}
		if d > b.Max {
			t.Fatalf("Delay(%d) = %v exceeds max %v", attempt, d, b.Max)
		}
		prev = d
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := sleepContext(ctx, time.Hour); err == nil {
		t.Fatal("sleepContext() on cancelled context returned nil")
	}
	if time.Since(start) > time.Second {
		t.Error("sleepContext() did not return promptly on cancellation")
	}
}
