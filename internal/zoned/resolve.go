package zoned

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeSkipped reports a wall time that does not exist on the requested date,
	// or a repeated time the caller asked to skip.
	ErrTimeSkipped = errors.New("zoned: local time skipped")

	ErrInvalidBehavior = errors.New("zoned: invalid dst behavior")
)

// TimeTwiceError reports a wall time that occurs twice on the requested date.
type TimeTwiceError struct {
	Earlier time.Time
	Later   time.Time
}

func (e *TimeTwiceError) Error() string {
	return fmt.Sprintf("zoned: local time occurs twice (%s, %s)",
		e.Earlier.Format(time.RFC3339), e.Later.Format(time.RFC3339))
}

// Kind classifies a wall time on a date.
type Kind int

const (
	KindExact Kind = iota
	KindSkipped
	KindRepeated
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindSkipped:
		return "skipped"
	case KindRepeated:
		return "repeated"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// AfterTransition probes are one minute apart; a gap longer than two hours is
// not something any zone in the tz database has.
const maxTransitionProbes = 121

// Lookup resolves tod on the calendar date of date, in date's location.
//
// For KindExact both results are the same instant. For KindRepeated they are
// the two valid instants. For KindSkipped they are the forced resolutions
// using the post-transition offset (earlier) and the pre-transition offset
// (later).
func Lookup(date time.Time, tod TimeOfDay) (earlier, later time.Time, kind Kind) {
	return lookupWall(tod.wallUTC(date), date.Location())
}

func lookupWall(w time.Time, loc *time.Location) (earlier, later time.Time, kind Kind) {
	// Any transition affecting w lies within a day of it.
	offA := offsetAt(w.Add(-24*time.Hour), loc)
	offB := offsetAt(w.Add(24*time.Hour), loc)

	offs := []time.Duration{offA}
	if offB != offA {
		offs = append(offs, offB)
	}

	var valid []time.Time
	var all []time.Time
	for _, off := range offs {
		c := w.Add(-off)
		all = append(all, c)
		if offsetAt(c, loc) == off {
			valid = append(valid, c)
		}
	}

	switch len(valid) {
	case 1:
		return valid[0].In(loc), valid[0].In(loc), KindExact
	case 2:
		a, b := ordered(valid[0], valid[1])
		return a.In(loc), b.In(loc), KindRepeated
	}
	if len(all) == 1 {
		return all[0].In(loc), all[0].In(loc), KindSkipped
	}
	a, b := ordered(all[0], all[1])
	return a.In(loc), b.In(loc), KindSkipped
}

func ordered(a, b time.Time) (time.Time, time.Time) {
	if b.Before(a) {
		return b, a
	}
	return a, b
}

func offsetAt(t time.Time, loc *time.Location) time.Duration {
	_, off := t.In(loc).Zone()
	return time.Duration(off) * time.Second
}

// afterTransition walks forward from tod (truncated to the minute) until the
// wall time exists again.
func afterTransition(date time.Time, tod TimeOfDay) (time.Time, bool) {
	loc := date.Location()
	w := tod.TruncateMinute().wallUTC(date)
	for range maxTransitionProbes {
		w = w.Add(time.Minute)
		earlier, _, kind := lookupWall(w, loc)
		if kind != KindSkipped {
			return earlier, true
		}
	}
	return time.Time{}, false
}

// Replacer places a fixed time of day onto dates, resolving DST gaps and
// overlaps with the configured behaviors.
type Replacer struct {
	Time     TimeOfDay
	Skipped  SkippedBehavior
	Repeated RepeatedBehavior
}

func NewReplacer(tod TimeOfDay, skipped SkippedBehavior, repeated RepeatedBehavior) (Replacer, error) {
	if err := tod.Validate(); err != nil {
		return Replacer{}, err
	}
	if !skipped.Valid() {
		return Replacer{}, fmt.Errorf("%w: %v", ErrInvalidBehavior, skipped)
	}
	if !repeated.Valid() {
		return Replacer{}, fmt.Errorf("%w: %v", ErrInvalidBehavior, repeated)
	}
	return Replacer{Time: tod, Skipped: skipped, Repeated: repeated}, nil
}

// Replace returns the instants for r.Time on date's calendar day, ordered
// ascending. The result is empty when the behavior says skip and holds two
// values only for RepeatedBoth.
func (r Replacer) Replace(date time.Time) ([]time.Time, error) {
	earlier, later, kind := Lookup(date, r.Time)
	switch kind {
	case KindExact:
		return []time.Time{earlier}, nil
	case KindSkipped:
		switch r.Skipped {
		case SkippedSkip:
			return nil, nil
		case SkippedEarlier:
			return []time.Time{earlier}, nil
		case SkippedLater:
			return []time.Time{later}, nil
		case SkippedAfterTransition:
			t, ok := afterTransition(date, r.Time)
			if !ok {
				return nil, fmt.Errorf("%w: no valid time after %s", ErrTimeSkipped, r.Time)
			}
			return []time.Time{t}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidBehavior, r.Skipped)
	case KindRepeated:
		switch r.Repeated {
		case RepeatedSkip:
			return nil, nil
		case RepeatedEarlier:
			return []time.Time{earlier}, nil
		case RepeatedLater:
			return []time.Time{later}, nil
		case RepeatedBoth:
			return []time.Time{earlier, later}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidBehavior, r.Repeated)
	}
	return nil, fmt.Errorf("zoned: unknown lookup kind %v", kind)
}

// Resolve is the single-valued form of Replace. A skipped result (from
// either behavior) is ErrTimeSkipped and RepeatedBoth is a *TimeTwiceError.
func (r Replacer) Resolve(date time.Time) (time.Time, error) {
	ts, err := r.Replace(date)
	if err != nil {
		return time.Time{}, err
	}
	switch len(ts) {
	case 0:
		return time.Time{}, ErrTimeSkipped
	case 1:
		return ts[0], nil
	}
	return time.Time{}, &TimeTwiceError{Earlier: ts[0], Later: ts[1]}
}

func (r Replacer) String() string {
	return fmt.Sprintf("%s if_skipped=%s if_repeated=%s", r.Time, r.Skipped, r.Repeated)
}
