package producer

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"schedkit/internal/astro"
)

// fakeEvent fires at 06:00:00.5 UTC except on the given days of the month.
func fakeEvent(calls *atomic.Int64, dark ...int) astro.EventFunc {
	return func(_ astro.Observer, date time.Time) (time.Time, error) {
		calls.Add(1)
		for _, d := range dark {
			if date.Day() == d {
				return time.Time{}, astro.ErrNoEvent
			}
		}
		y, m, d := date.UTC().Date()
		return time.Date(y, m, d, 6, 0, 0, 500_000_000, time.UTC), nil
	}
}

func TestSunRoundsUpAndCaches(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	p, err := NewSun(fakeEvent(&calls), astro.Observer{}, "fake", WithSunCache(NewSunCache()), WithLocation(time.UTC))
	require.NoError(t, err)

	after := mustParse(t, "2024-01-10T00:00:00Z")
	got, err := p.Next(after)
	require.NoError(t, err)
	require.Equal(t, "2024-01-10T06:00:01Z", got.Format(time.RFC3339Nano))

	got2, err := p.Next(after)
	require.NoError(t, err)
	require.True(t, got.Equal(got2))
	require.EqualValues(t, 1, calls.Load())

	// Past today's event: tomorrow's.
	got, err = p.Next(mustParse(t, "2024-01-10T07:00:00Z"))
	require.NoError(t, err)
	require.Equal(t, "2024-01-11T06:00:01Z", got.Format(time.RFC3339))
}

func TestSunSkipsDaysWithoutEvent(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	p, err := NewSun(fakeEvent(&calls, 2, 3, 4), astro.Observer{}, "fake", WithSunCache(NewSunCache()))
	require.NoError(t, err)

	got, err := p.Next(mustParse(t, "2024-01-01T07:00:00Z"))
	require.NoError(t, err)
	require.Equal(t, "2024-01-05T06:00:01Z", got.UTC().Format(time.RFC3339))
}

func TestSunPropagatesErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	fn := func(astro.Observer, time.Time) (time.Time, error) { return time.Time{}, boom }
	p, err := NewSun(fn, astro.Observer{}, "broken", WithSunCache(NewSunCache()))
	require.NoError(t, err)
	_, err = p.Next(mustParse(t, "2024-01-01T00:00:00Z"))
	require.ErrorIs(t, err, boom)

	_, err = NewSun(nil, astro.Observer{}, "nil")
	require.Error(t, err)
	_, err = NewSun(fn, astro.Observer{Latitude: 100}, "bad")
	require.ErrorIs(t, err, astro.ErrInvalidObserver)
}

func TestSunCacheEviction(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	cache := NewSunCache()
	p, err := NewSun(fakeEvent(&calls), astro.Observer{}, "fake", WithSunCache(cache))
	require.NoError(t, err)

	day := mustParse(t, "2024-01-01T00:00:00Z")
	for i := range sunCacheSize {
		_, err := p.Next(day.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	require.Equal(t, sunCacheSize, cache.Len())

	_, err = p.Next(day.AddDate(0, 0, sunCacheSize))
	require.NoError(t, err)
	require.Equal(t, sunCacheSize-sunCacheEvict+1, cache.Len())
}

func TestSunWithRealEvents(t *testing.T) {
	t.Parallel()
	obs := astro.Observer{Latitude: 52.52, Longitude: 13.405}
	p, err := NewSun(astro.Sunrise, obs, "sunrise", WithSunCache(NewSunCache()))
	require.NoError(t, err)

	after := mustParse(t, "2024-06-20T12:00:00Z")
	got, err := p.Next(after)
	require.NoError(t, err)
	require.Equal(t, "2024-06-21", got.UTC().Format(time.DateOnly))
	require.Zero(t, got.Nanosecond())
}
