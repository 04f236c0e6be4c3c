package producer

import (
	"fmt"
	"time"

	"schedkit/internal/zoned"
)

// TimeRange allows wall clock times in [lower, upper). Either bound may be nil.
type TimeRange struct {
	lower *zoned.TimeOfDay
	upper *zoned.TimeOfDay
}

func NewTimeRange(lower, upper *zoned.TimeOfDay) (*TimeRange, error) {
	if lower == nil && upper == nil {
		return nil, fmt.Errorf("%w: time range needs at least one bound", ErrInvalidFilter)
	}
	if lower != nil && upper != nil && !lower.Before(*upper) {
		return nil, fmt.Errorf("%w: time range lower %s must be before upper %s", ErrInvalidFilter, lower, upper)
	}
	return &TimeRange{lower: lower, upper: upper}, nil
}

func (f *TimeRange) Allow(t time.Time) bool {
	tod := zoned.Of(t)
	if f.lower != nil && tod.Before(*f.lower) {
		return false
	}
	if f.upper != nil && !tod.Before(*f.upper) {
		return false
	}
	return true
}

// intSet is a membership filter over a small integer domain.
type intSet struct {
	name string
	in   map[int]bool
	of   func(t time.Time) int
}

func newIntSet(name string, lo, hi int, values []int, of func(time.Time) int) (*intSet, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s set is empty", ErrInvalidFilter, name)
	}
	s := &intSet{name: name, in: make(map[int]bool, len(values)), of: of}
	for _, v := range values {
		if v < lo || v > hi {
			return nil, fmt.Errorf("%w: %s %d out of [%d, %d]", ErrInvalidFilter, name, v, lo, hi)
		}
		s.in[v] = true
	}
	return s, nil
}

func (s *intSet) Allow(t time.Time) bool { return s.in[s.of(t)] }

func isoWeekday(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}

// Weekdays allows ISO weekdays (1 = Monday, 7 = Sunday).
type Weekdays struct{ *intSet }

func NewWeekdays(days ...int) (Weekdays, error) {
	s, err := newIntSet("weekday", 1, 7, days, isoWeekday)
	return Weekdays{s}, err
}

// DaysOfMonth allows days of the month (1-31).
type DaysOfMonth struct{ *intSet }

func NewDaysOfMonth(days ...int) (DaysOfMonth, error) {
	s, err := newIntSet("day of month", 1, 31, days, func(t time.Time) int { return t.Day() })
	return DaysOfMonth{s}, err
}

// Months allows months (1-12).
type Months struct{ *intSet }

func NewMonths(months ...int) (Months, error) {
	s, err := newIntSet("month", 1, 12, months, func(t time.Time) int { return int(t.Month()) })
	return Months{s}, err
}

type notFilter struct{ f Filter }

func (n notFilter) Allow(t time.Time) bool { return !n.f.Allow(t) }

// Not inverts f.
func Not(f Filter) Filter { return notFilter{f: f} }

type allFilter []Filter

func (a allFilter) Allow(t time.Time) bool {
	for _, f := range a {
		if !f.Allow(t) {
			return false
		}
	}
	return true
}

// All allows t when every filter does. An empty All allows everything.
func All(fs ...Filter) Filter { return allFilter(fs) }

type anyFilter []Filter

func (a anyFilter) Allow(t time.Time) bool {
	for _, f := range a {
		if f.Allow(t) {
			return true
		}
	}
	return false
}

// Any allows t when at least one filter does. An empty Any allows nothing.
func Any(fs ...Filter) Filter { return anyFilter(fs) }
