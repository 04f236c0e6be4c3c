package astro

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// dayTimes asks suncalc for the named events around noon UTC of day.
func dayTimes(obs Observer, day time.Time) map[suncalc.DayTimeName]suncalc.DayTime {
	return suncalc.GetTimesWithObserver(day.Add(12*time.Hour), suncalc.Observer{
		Latitude:  obs.Latitude,
		Longitude: obs.Longitude,
		Height:    math.Max(obs.Elevation, 0),
		Location:  time.UTC,
	})
}

// named returns the suncalc event called name on the UTC date of date.
// suncalc yields an invalid time when the sun never reaches the angle.
func named(obs Observer, date time.Time, name suncalc.DayTimeName) (time.Time, error) {
	return onDate(date, func(day time.Time) (time.Time, bool) {
		dt, ok := dayTimes(obs, day)[name]
		if !ok || dt.Value.IsZero() {
			return time.Time{}, false
		}
		t := dt.Value.UTC()
		if y := t.Year(); y < day.Year()-1 || y > day.Year()+1 {
			return time.Time{}, false
		}
		return t, true
	})
}

// Position returns the sun's azimuth (degrees clockwise from north) and its
// geometric elevation above the horizon at t.
func Position(obs Observer, t time.Time) (azimuth, elevation float64) {
	p := suncalc.GetPosition(t.UTC(), obs.Latitude, obs.Longitude)
	// suncalc measures azimuth from south, positive towards west.
	azimuth = math.Mod(deg(p.Azimuth)+180, 360)
	if azimuth < 0 {
		azimuth += 360
	}
	return azimuth, deg(p.Altitude)
}

func deg(r float64) float64 { return r * 180 / math.Pi }
