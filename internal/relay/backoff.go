package relay

import (
	"context"
	"time"
)

const (
	defaultBackoffUnit = time.Second
	defaultMaxBackoff  = 60 * time.Second
	defaultMaxAttempts = 5
)

// Backoff computes reconnect delays of Unit·2^attempt, capped at Max.
type Backoff struct {
	Unit time.Duration
	Max  time.Duration
}

// DefaultBackoff returns 1s doubling up to 60s.
func DefaultBackoff() Backoff {
	return Backoff{Unit: defaultBackoffUnit, Max: defaultMaxBackoff}
}

// Delay returns the wait after the attempt-th consecutive failure.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Unit <= 0 {
		b.Unit = defaultBackoffUnit
	}
	if b.Max <= 0 {
		b.Max = defaultMaxBackoff
	}
	if attempt < 0 {
		attempt = 0
	}

	d := b.Unit
	for i := 0; i < attempt; i++ {
		if d >= b.Max/2 {
			return b.Max
		}
		d *= 2
	}
	return min(d, b.Max)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
