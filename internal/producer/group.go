package producer

import (
	"slices"
	"time"
)

// Group fires at the earliest occurrence of any member.
type Group struct {
	base
	members []Producer
}

func NewGroup(members []Producer, opts ...Option) (*Group, error) {
	if len(members) == 0 {
		return nil, ErrNoProducers
	}
	return &Group{base: newOptions(opts).base(), members: slices.Clone(members)}, nil
}

// Next re-queries every member from the smallest rejected value, so a value
// one member already produced is never skipped by advancing another.
func (g *Group) Next(after time.Time) (time.Time, error) {
	cur := after
	values := make([]time.Time, len(g.members))
	return loop(func() (time.Time, bool, error) {
		for i, p := range g.members {
			v, err := p.Next(cur)
			if err != nil {
				return time.Time{}, false, err
			}
			values[i] = v
		}
		slices.SortFunc(values, func(a, b time.Time) int { return a.Compare(b) })
		cur = values[0]
		for _, v := range values {
			if v.After(after) && g.allowed(v) {
				return v, true, nil
			}
		}
		return time.Time{}, false, nil
	})
}
