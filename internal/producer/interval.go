package producer

import (
	"fmt"
	"time"
)

// Interval fires at anchor + k*every for integer k.
type Interval struct {
	base
	anchor time.Time
	every  time.Duration
}

// NewInterval builds an interval producer. A zero anchor means "now", fixed
// once at construction.
func NewInterval(anchor time.Time, every time.Duration, opts ...Option) (*Interval, error) {
	if every <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, every)
	}
	if anchor.IsZero() {
		anchor = time.Now()
	}
	return &Interval{
		base:   newOptions(opts).base(),
		anchor: anchor.Round(0),
		every:  every,
	}, nil
}

func (p *Interval) Next(after time.Time) (time.Time, error) {
	k := floorDiv(after.Sub(p.anchor), p.every) + 1
	cand := p.anchor.Add(time.Duration(k) * p.every)

	return loop(func() (time.Time, bool, error) {
		if p.allowed(cand) {
			return cand, true, nil
		}
		cand = cand.Add(p.every)
		return time.Time{}, false, nil
	})
}

func (p *Interval) String() string {
	return fmt.Sprintf("every %s from %s", p.every, p.anchor.Format(time.RFC3339))
}

func floorDiv(d, step time.Duration) int64 {
	q := int64(d / step)
	if d%step != 0 && d < 0 {
		q--
	}
	return q
}
