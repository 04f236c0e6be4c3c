// Package astro adapts github.com/sixdouglas/suncalc to per-date solar
// events. Every event is computed for a UTC calendar date; events that do
// not happen on that date (polar day or night) return ErrNoEvent.
package astro

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoEvent reports that the sun never reaches the requested position on the date.
	ErrNoEvent = errors.New("astro: event does not occur on this date")

	ErrInvalidObserver = errors.New("astro: invalid observer")
	ErrInvalidAngle    = errors.New("astro: invalid angle")
)

// Observer is a position on earth. Elevation is in meters above sea level
// and lowers the visible horizon.
type Observer struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

func (o Observer) Validate() error {
	switch {
	case o.Latitude < -90 || o.Latitude > 90:
		return fmt.Errorf("%w: latitude %v out of [-90, 90]", ErrInvalidObserver, o.Latitude)
	case o.Longitude < -180 || o.Longitude > 180:
		return fmt.Errorf("%w: longitude %v out of [-180, 180]", ErrInvalidObserver, o.Longitude)
	}
	return nil
}

func (o Observer) String() string {
	return fmt.Sprintf("%.4f,%.4f@%.0fm", o.Latitude, o.Longitude, o.Elevation)
}

// EventFunc returns the instant of one solar event on the UTC calendar date of date.
type EventFunc func(obs Observer, date time.Time) (time.Time, error)

// Direction selects the morning or evening crossing of an elevation.
type Direction int

const (
	Rising Direction = iota
	Setting
)

func (d Direction) String() string {
	if d == Setting {
		return "setting"
	}
	return "rising"
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "rising", "rise":
		return Rising, nil
	case "setting", "set":
		return Setting, nil
	}
	return 0, fmt.Errorf("unknown sun direction %q", s)
}

// Depression is the angle of the sun below the horizon that defines twilight.
type Depression float64

const (
	Civil        Depression = 6
	Nautical     Depression = 12
	Astronomical Depression = 18
)

func utcMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
