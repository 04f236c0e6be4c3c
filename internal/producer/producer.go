// Package producer computes firing times. A Producer is a pure function of
// its reference instant: calling Next twice with the same argument yields the
// same result. Producers nest (operations wrap one producer, groups merge
// several) and leaf producers consult an optional Filter before accepting a
// candidate.
package producer

import (
	"time"
)

// Producer returns the next occurrence strictly after after.
type Producer interface {
	Next(after time.Time) (time.Time, error)
}

// Filter decides whether an occurrence is acceptable. t is expressed in the
// producer's location.
type Filter interface {
	Allow(t time.Time) bool
}

// FilterFunc adapts a plain function to Filter.
type FilterFunc func(t time.Time) bool

func (f FilterFunc) Allow(t time.Time) bool { return f(t) }

// MaxLoopSteps bounds every forward search.
const MaxLoopSteps = 100_000

// loop runs step until it reports done, an error, or the step budget is spent.
func loop(step func() (time.Time, bool, error)) (time.Time, error) {
	for range MaxLoopSteps {
		t, done, err := step()
		if err != nil {
			return time.Time{}, err
		}
		if done {
			return t, nil
		}
	}
	return time.Time{}, ErrInfiniteLoopDetected
}

type options struct {
	filter Filter
	loc    *time.Location
	cache  *SunCache
}

// Option configures a leaf or group producer.
type Option func(*options)

// WithFilter attaches a filter. Candidates it rejects are skipped.
func WithFilter(f Filter) Option { return func(o *options) { o.filter = f } }

// WithLocation sets the zone used for calendar math and for filters.
// The default is time.Local, resolved once at construction.
func WithLocation(loc *time.Location) Option { return func(o *options) { o.loc = loc } }

// WithSunCache replaces the process-wide astronomical cache.
func WithSunCache(c *SunCache) Option { return func(o *options) { o.cache = c } }

type base struct {
	filter Filter
	loc    *time.Location
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.loc == nil {
		o.loc = time.Local
	}
	return o
}

func (o options) base() base { return base{filter: o.filter, loc: o.loc} }

func (b base) allowed(t time.Time) bool {
	return b.filter == nil || b.filter.Allow(t.In(b.loc))
}

// Location returns the zone the producer works in.
func (b base) Location() *time.Location { return b.loc }

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
