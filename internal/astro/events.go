package astro

import (
	"fmt"
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// onDate evaluates compute for the UTC date of date. For observers far from
// Greenwich the first estimate can land on a neighbouring UTC day; the
// neighbouring day is tried once before giving up.
func onDate(date time.Time, compute func(day time.Time) (time.Time, bool)) (time.Time, error) {
	day := utcMidnight(date)
	t, ok := compute(day)
	if !ok {
		return time.Time{}, ErrNoEvent
	}
	if sameUTCDay(t, day) {
		return t, nil
	}
	shift := -1
	if t.Before(day) {
		shift = 1
	}
	t, ok = compute(day.AddDate(0, 0, shift))
	if ok && sameUTCDay(t, day) {
		return t, nil
	}
	return time.Time{}, ErrNoEvent
}

// Sunrise is the moment the upper limb of the sun appears over the horizon.
func Sunrise(obs Observer, date time.Time) (time.Time, error) {
	return named(obs, date, suncalc.Sunrise)
}

// Sunset is the moment the upper limb of the sun disappears below the horizon.
func Sunset(obs Observer, date time.Time) (time.Time, error) {
	return named(obs, date, suncalc.Sunset)
}

// Noon is the moment the sun crosses the local meridian.
func Noon(obs Observer, date time.Time) (time.Time, error) {
	return named(obs, date, suncalc.SolarNoon)
}

// Dawn is the start of civil twilight.
func Dawn(obs Observer, date time.Time) (time.Time, error) {
	return DawnAt(Civil)(obs, date)
}

// Dusk is the end of civil twilight.
func Dusk(obs Observer, date time.Time) (time.Time, error) {
	return DuskAt(Civil)(obs, date)
}

var twilight = map[Depression][2]suncalc.DayTimeName{
	Civil:        {suncalc.Dawn, suncalc.Dusk},
	Nautical:     {suncalc.NauticalDawn, suncalc.NauticalDusk},
	Astronomical: {suncalc.NightEnd, suncalc.Night},
}

// DawnAt is the morning crossing of dep degrees below the horizon. Other
// depressions than the three named ones are found by elevation search.
func DawnAt(dep Depression) EventFunc {
	if names, ok := twilight[dep]; ok {
		return func(obs Observer, date time.Time) (time.Time, error) {
			return named(obs, date, names[0])
		}
	}
	return elevationCrossing(-float64(dep), Rising)
}

func DuskAt(dep Depression) EventFunc {
	if names, ok := twilight[dep]; ok {
		return func(obs Observer, date time.Time) (time.Time, error) {
			return named(obs, date, names[1])
		}
	}
	return elevationCrossing(-float64(dep), Setting)
}

// TimeAtElevation returns the event for the sun crossing elevation degrees
// in the given direction.
func TimeAtElevation(elevation float64, dir Direction) (EventFunc, error) {
	if elevation < -90 || elevation > 90 || math.IsNaN(elevation) {
		return nil, fmt.Errorf("%w: elevation %v out of [-90, 90]", ErrInvalidAngle, elevation)
	}
	return elevationCrossing(elevation, dir), nil
}

const scanStep = 10 * time.Minute

// elevationCrossing scans the UTC day for the sun passing elevation in dir
// and refines the crossing by bisection.
func elevationCrossing(elevation float64, dir Direction) EventFunc {
	return func(obs Observer, date time.Time) (time.Time, error) {
		diff := func(t time.Time) float64 {
			_, el := Position(obs, t)
			if dir == Setting {
				return elevation - el
			}
			return el - elevation
		}
		return scanDay(date, diff, func(prev, cur float64) bool { return prev < 0 && cur >= 0 })
	}
}

// TimeAtAzimuth returns the event for the sun passing azimuth degrees.
func TimeAtAzimuth(azimuth float64) (EventFunc, error) {
	if azimuth < 0 || azimuth > 360 || math.IsNaN(azimuth) {
		return nil, fmt.Errorf("%w: azimuth %v out of [0, 360]", ErrInvalidAngle, azimuth)
	}
	return func(obs Observer, date time.Time) (time.Time, error) {
		diff := func(t time.Time) float64 {
			az, _ := Position(obs, t)
			return angleDiff(az, azimuth)
		}
		// A jump of 180 or more is the wrap on the far side, not a crossing.
		return scanDay(date, diff, func(prev, cur float64) bool { return prev < 0 && cur >= 0 && cur-prev < 180 })
	}, nil
}

// scanDay walks the UTC day of date in scanStep steps and bisects the first
// step where crossed holds for diff.
func scanDay(date time.Time, diff func(time.Time) float64, crossed func(prev, cur float64) bool) (time.Time, error) {
	day := utcMidnight(date)
	prevT := day
	prev := diff(prevT)
	for t := day.Add(scanStep); !t.After(day.Add(24 * time.Hour)); t = t.Add(scanStep) {
		cur := diff(t)
		if crossed(prev, cur) {
			found := bisect(prevT, t, diff)
			if !sameUTCDay(found, day) {
				break
			}
			return found, nil
		}
		prevT, prev = t, cur
	}
	return time.Time{}, ErrNoEvent
}

// angleDiff returns a-b normalised to (-180, 180].
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	switch {
	case d > 180:
		d -= 360
	case d <= -180:
		d += 360
	}
	return d
}

func bisect(lo, hi time.Time, f func(time.Time) float64) time.Time {
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if f(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi.Truncate(time.Second)
}
