package producer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"schedkit/internal/astro"
)

const (
	sunCacheSize  = 64
	sunCacheEvict = 10

	// Polar day or night never lasts longer than a year.
	maxNoEventDays = 366
)

type sunKey struct {
	year  int
	month time.Month
	day   int
	obs   astro.Observer
	kind  string
}

// SunCache memoizes astronomical events by (UTC date, observer, kind).
// It only saves work; results are the same with or without it.
type SunCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func NewSunCache() *SunCache {
	c, err := lru.New(sunCacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &SunCache{lru: c}
}

var defaultSunCache = NewSunCache()

func (c *SunCache) get(k sunKey) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(k)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

func (c *SunCache) put(k sunKey, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru.Len() >= sunCacheSize {
		for range sunCacheEvict {
			c.lru.RemoveOldest()
		}
	}
	c.lru.Add(k, t)
}

// Len reports the number of cached events.
func (c *SunCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Sun fires at an astronomical event computed by fn.
type Sun struct {
	base
	fn    astro.EventFunc
	obs   astro.Observer
	kind  string
	cache *SunCache
}

// NewSun builds a producer for fn as seen by obs. kind identifies fn (and
// its parameters) in the cache, e.g. "sunrise" or "elevation:-6:rising".
func NewSun(fn astro.EventFunc, obs astro.Observer, kind string, opts ...Option) (*Sun, error) {
	if fn == nil {
		return nil, errors.New("producer: sun event function is nil")
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	cache := o.cache
	if cache == nil {
		cache = defaultSunCache
	}
	return &Sun{base: o.base(), fn: fn, obs: obs, kind: kind, cache: cache}, nil
}

// event returns the event on the UTC date of at, or on the first later date
// that has one.
func (p *Sun) event(at time.Time) (time.Time, error) {
	day := at.UTC()
	y, m, d := day.Date()
	key := sunKey{year: y, month: m, day: d, obs: p.obs, kind: p.kind}
	if t, ok := p.cache.get(key); ok {
		return t, nil
	}

	var ev time.Time
	for i := 0; ; i++ {
		var err error
		ev, err = p.fn(p.obs, day)
		if err == nil {
			break
		}
		if !errors.Is(err, astro.ErrNoEvent) || i >= maxNoEventDays {
			return time.Time{}, fmt.Errorf("%s for %s: %w", p.kind, p.obs, err)
		}
		day = day.Add(24 * time.Hour)
	}

	// Round up to the next full second.
	if ev.Nanosecond() != 0 {
		ev = ev.Truncate(time.Second).Add(time.Second)
	}
	p.cache.put(key, ev)
	return ev, nil
}

func (p *Sun) Next(after time.Time) (time.Time, error) {
	cur := after
	return loop(func() (time.Time, bool, error) {
		ev, err := p.event(cur)
		if err != nil {
			return time.Time{}, false, err
		}
		if ev.After(after) && p.allowed(ev) {
			return ev, true, nil
		}
		cur = ev.Add(24 * time.Hour)
		return time.Time{}, false, nil
	})
}

func (p *Sun) String() string { return fmt.Sprintf("sun %s at %s", p.kind, p.obs) }
