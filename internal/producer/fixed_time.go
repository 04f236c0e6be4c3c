package producer

import (
	"time"

	"schedkit/internal/zoned"
)

// FixedTime fires once per day at a wall clock time.
type FixedTime struct {
	base
	replacer zoned.Replacer
}

func NewFixedTime(r zoned.Replacer, opts ...Option) *FixedTime {
	return &FixedTime{base: newOptions(opts).base(), replacer: r}
}

func (p *FixedTime) Next(after time.Time) (time.Time, error) {
	y, m, d := after.In(p.loc).Date()
	// Noon keeps AddDate clear of midnight transitions.
	date := time.Date(y, m, d, 12, 0, 0, 0, p.loc)

	return loop(func() (time.Time, bool, error) {
		cands, err := p.replacer.Replace(date)
		if err != nil {
			return time.Time{}, false, err
		}
		for _, c := range cands {
			if c.After(after) && p.allowed(c) {
				return c, true, nil
			}
		}
		date = date.AddDate(0, 0, 1)
		return time.Time{}, false, nil
	})
}

func (p *FixedTime) String() string { return "time " + p.replacer.String() }
