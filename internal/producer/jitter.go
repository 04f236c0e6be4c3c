package producer

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Jitter adds a uniformly drawn offset in [low, high] to every occurrence.
type Jitter struct {
	inner  Producer
	low    time.Duration
	high   time.Duration
	int64N func(n int64) int64
}

func NewJitter(inner Producer, low, high time.Duration) (*Jitter, error) {
	if high <= low {
		return nil, fmt.Errorf("%w: [%s, %s]", ErrInvalidJitter, low, high)
	}
	return &Jitter{inner: inner, low: low, high: high, int64N: rand.Int64N}, nil
}

// NewJitterUpTo is NewJitter(inner, 0, high).
func NewJitterUpTo(inner Producer, high time.Duration) (*Jitter, error) {
	return NewJitter(inner, 0, high)
}

func (p *Jitter) Next(after time.Time) (time.Time, error) {
	next, err := p.inner.Next(after)
	if err != nil {
		return time.Time{}, err
	}
	low, high := p.low, p.high
	if low < 0 {
		// If the lowest draw could land at or before after, shift the whole
		// window forward so every draw is valid.
		if lowest := after.Sub(next); lowest >= low {
			shift := lowest - low + time.Microsecond
			low += shift
			high += shift
		}
	}
	return next.Add(low + time.Duration(p.int64N(int64(high-low)+1))), nil
}
