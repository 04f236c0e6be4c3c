package producer

import (
	"fmt"
	"time"

	"schedkit/internal/zoned"
)

// Offset shifts every occurrence of the wrapped producer by a fixed duration.
type Offset struct {
	inner  Producer
	offset time.Duration
}

func NewOffset(inner Producer, offset time.Duration) *Offset {
	return &Offset{inner: inner, offset: offset}
}

func (p *Offset) Next(after time.Time) (time.Time, error) {
	cur := after
	return loop(func() (time.Time, bool, error) {
		next, err := p.inner.Next(cur)
		if err != nil {
			return time.Time{}, false, err
		}
		if shifted := next.Add(p.offset); shifted.After(after) {
			return shifted, true, nil
		}
		cur = next
		return time.Time{}, false, nil
	})
}

// pick returns the first clamp strictly after after, falling back to the
// last clamp. ok is false when clamps is empty (the clamp time was skipped).
func pick(clamps []time.Time, after time.Time) (time.Time, bool) {
	if len(clamps) == 0 {
		return time.Time{}, false
	}
	for _, c := range clamps {
		if c.After(after) {
			return c, true
		}
	}
	return clamps[len(clamps)-1], true
}

// Earliest moves occurrences that fall before a wall clock time on their
// day up to that time.
type Earliest struct {
	inner    Producer
	replacer zoned.Replacer
	loc      *time.Location
}

func NewEarliest(inner Producer, r zoned.Replacer, loc *time.Location) *Earliest {
	return &Earliest{inner: inner, replacer: r, loc: orLocal(loc)}
}

func (p *Earliest) Next(after time.Time) (time.Time, error) {
	next, err := p.inner.Next(after)
	if err != nil {
		return time.Time{}, err
	}
	clamps, err := p.replacer.Replace(next.In(p.loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("earliest %s: %w", p.replacer, err)
	}
	if c, ok := pick(clamps, after); ok && next.Before(c) {
		return c, nil
	}
	return next, nil
}

// Latest moves occurrences that fall after a wall clock time on their day
// back to that time, as long as the result stays after the reference instant.
type Latest struct {
	inner    Producer
	replacer zoned.Replacer
	loc      *time.Location
}

func NewLatest(inner Producer, r zoned.Replacer, loc *time.Location) *Latest {
	return &Latest{inner: inner, replacer: r, loc: orLocal(loc)}
}

func (p *Latest) Next(after time.Time) (time.Time, error) {
	cur := after
	return loop(func() (time.Time, bool, error) {
		next, err := p.inner.Next(cur)
		if err != nil {
			return time.Time{}, false, err
		}
		clamps, err := p.replacer.Replace(next.In(p.loc))
		if err != nil {
			return time.Time{}, false, fmt.Errorf("latest %s: %w", p.replacer, err)
		}
		c, ok := pick(clamps, after)
		switch {
		case !ok, !c.Before(next):
			return next, true, nil
		case c.After(after):
			return c, true, nil
		}
		cur = next
		return time.Time{}, false, nil
	})
}
