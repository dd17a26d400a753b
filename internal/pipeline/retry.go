package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Retry runs an operation with bounded exponential backoff. Only errors
// wrapping domain.ErrTransient are retried.
type Retry struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
	Clock       clockwork.Clock
	// OnRetry, when set, is called before each sleep.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetry starts at 2s, doubles each attempt and caps at 60s.
func DefaultRetry(maxAttempts int) Retry {
	return Retry{
		Initial:     2 * time.Second,
		Max:         60 * time.Second,
		MaxAttempts: maxAttempts,
		Clock:       clockwork.NewRealClock(),
	}
}

// Do calls op until it succeeds, fails permanently, exhausts MaxAttempts or
// ctx is cancelled. It returns the number of attempts made.
func (r Retry) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	clock := r.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := r.Initial

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return attempt, nil
		}
		if !errors.Is(err, domain.ErrTransient) || ctx.Err() != nil {
			return attempt, err
		}
		if attempt == attempts {
			break
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, backoff, err)
		}
		if !sleepWithContext(ctx, clock, backoff) {
			return attempt, ctx.Err()
		}
		backoff = nextBackoff(backoff, r.Max)
	}
	return attempts, fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
