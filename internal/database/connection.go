package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Backoff controls how NewDB retries while the database server comes up.
// Attempts counts the first try; a zero value disables retries.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
	Jitter   bool
}

// DefaultBackoff gives a server about a minute to start accepting connections.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts: 6,
		Initial:  100 * time.Millisecond,
		Max:      30 * time.Second,
		Factor:   2,
		Jitter:   true,
	}
}

// delay returns the wait before retry n (0-based), capped at Max. Jitter adds
// up to a quarter of the delay.
func (b Backoff) delay(n int) time.Duration {
	d := float64(b.Initial)
	for i := 0; i < n; i++ {
		d *= b.Factor
		if b.Max > 0 && d >= float64(b.Max) {
			d = float64(b.Max)
			break
		}
	}
	if b.Jitter {
		d += rand.Float64() * d / 4
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, the attempts run out or ctx is done.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)

	var err error
	for n := 0; n < attempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); err == nil {
			return nil
		}
		if n == attempts-1 {
			break
		}

		wait := b.delay(n)
		slog.DebugContext(ctx, "Database not ready, retrying",
			"event", "db_connect_retry",
			"attempt", n+1, "max_attempts", attempts,
			"delay_ms", wait.Milliseconds(), "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("database unavailable after %d attempts: %w", attempts, err)
}
