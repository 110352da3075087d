package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// maxMediaDelay caps the wait between media fetch attempts
const maxMediaDelay = 30 * time.Second

// BackoffStrategy computes the delay before the next attempt
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier after every failed
// attempt, capped at MaxDelay, with up to JitterFactor of random spread
// either way.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// MediaBackoff starts at base and doubles up to 30s with 10% jitter
func MediaBackoff(base time.Duration) *ExponentialBackoff {
	if base <= 0 {
		base = time.Second
	}
	return &ExponentialBackoff{
		BaseDelay:    base,
		MaxDelay:     maxMediaDelay,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay returns the wait after the given failed attempt (1-based)
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	mult := eb.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(eb.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if eb.MaxDelay > 0 && delay >= float64(eb.MaxDelay) {
			break
		}
	}
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		spread := delay * eb.JitterFactor
		delay += (rand.Float64()*2 - 1) * spread
	}
	return max(time.Duration(delay), 0)
}

// ConstantBackoff waits the same Delay after every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns Delay for any attempt after the first
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for delay unless ctx ends first
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
