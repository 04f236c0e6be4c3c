package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures WithRetry. Zero values pick the defaults noted on
// each field.
type RetryPolicy struct {
	// Max is the number of retries after the first attempt.
	Max int
	// Base is the first backoff delay (500ms).
	Base time.Duration
	// MaxDelay caps every delay (15s).
	MaxDelay time.Duration
	// Jitter is the +/- fraction applied to each delay (0.2).
	Jitter float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Base <= 0 {
		p.Base = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 15 * time.Second
	}
	if p.Jitter <= 0 {
		p.Jitter = 0.2
	}
	return p
}

// WithRetry wraps run so that failures are retried with exponential backoff.
// Errors marked with NoRetry, and cancellation of ctx, stop immediately.
func WithRetry(run func(ctx context.Context) error, p RetryPolicy) func(ctx context.Context) error {
	if p.Max <= 0 {
		return run
	}
	p = p.withDefaults()
	return func(ctx context.Context) error {
		var err error
		for attempt := 0; ; attempt++ {
			err = run(ctx)
			if err == nil || IsNoRetry(err) || ctx.Err() != nil || attempt >= p.Max {
				return err
			}
			t := time.NewTimer(p.delay(attempt+1, err))
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
	}
}

// delay is the wait before retry number retry (1-based). A RetryAfterError
// hint replaces the exponential step.
func (p RetryPolicy) delay(retry int, err error) time.Duration {
	var d time.Duration
	var ra RetryAfterError
	if errors.As(err, &ra) {
		d = min(ra.RetryAfter(), p.MaxDelay)
	} else {
		d = p.Base
		for i := 1; i < retry && d < p.MaxDelay; i++ {
			d *= 2
		}
	}
	if d > 0 {
		r := (rand.Float64()*2 - 1) * p.Jitter
		d = max(time.Duration(float64(d)*(1+r)), 0)
	}
	return min(d, p.MaxDelay)
}
