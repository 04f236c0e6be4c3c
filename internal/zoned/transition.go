package zoned

import (
	"errors"
	"fmt"
	"time"
)

// Default behaviors used when the time of day is outside every transition window.
const (
	DefaultSkipped  = SkippedAfterTransition
	DefaultRepeated = RepeatedEarlier
)

var ErrBehaviorRequired = errors.New("zoned: time of day falls inside a dst transition")

// Window is the half-open wall clock range [From, To) touched by one zone transition.
type Window struct {
	At   time.Time // instant of the transition
	From TimeOfDay
	To   TimeOfDay
}

// Contains reports whether t falls inside the window. Windows that wrap
// midnight are handled.
func (w Window) Contains(t TimeOfDay) bool {
	if w.From.Before(w.To) {
		return !t.Before(w.From) && t.Before(w.To)
	}
	return !t.Before(w.From) || t.Before(w.To)
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s@%s", w.From, w.To, w.At.Format("2006-01-02"))
}

// Transitions holds the gaps (Forward) and overlaps (Backward) of a zone for one year.
type Transitions struct {
	Forward  []Window
	Backward []Window
}

// FindTransitions lists the offset changes of loc during year.
func FindTransitions(loc *time.Location, year int) Transitions {
	var out Transitions
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(1, 0, 0)

	t := start
	for {
		_, next := t.ZoneBounds()
		if next.IsZero() || !next.Before(end) {
			break
		}
		before := offsetAt(next.Add(-time.Second), loc)
		after := offsetAt(next, loc)
		if before != after {
			oldWall := Of(next.UTC().Add(before))
			newWall := Of(next.UTC().Add(after))
			if after > before {
				out.Forward = append(out.Forward, Window{At: next, From: oldWall, To: newWall})
			} else {
				out.Backward = append(out.Backward, Window{At: next, From: newWall, To: oldWall})
			}
		}
		t = next
	}
	return out
}

func inAny(ws []Window, t TimeOfDay) (Window, bool) {
	for _, w := range ws {
		if w.Contains(t) {
			return w, true
		}
	}
	return Window{}, false
}

// CheckDSTHandling fills in missing behaviors for tod. A nil behavior is
// replaced by its default, unless tod lies inside a transition window of
// loc during year, in which case the caller must choose explicitly.
func CheckDSTHandling(loc *time.Location, year int, tod TimeOfDay, skipped *SkippedBehavior, repeated *RepeatedBehavior) (SkippedBehavior, RepeatedBehavior, error) {
	if skipped != nil && repeated != nil {
		return *skipped, *repeated, nil
	}
	if loc == nil {
		loc = time.Local
	}
	tr := FindTransitions(loc, year)

	s := DefaultSkipped
	if skipped != nil {
		s = *skipped
	} else if w, ok := inAny(tr.Forward, tod); ok {
		return 0, 0, fmt.Errorf("%w: %s is inside forward transition %s of %s and no skipped behavior is set",
			ErrBehaviorRequired, tod, w, loc)
	}

	r := DefaultRepeated
	if repeated != nil {
		r = *repeated
	} else if w, ok := inAny(tr.Backward, tod); ok {
		return 0, 0, fmt.Errorf("%w: %s is inside backward transition %s of %s and no repeated behavior is set",
			ErrBehaviorRequired, tod, w, loc)
	}
	return s, r, nil
}
