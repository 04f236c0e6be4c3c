package zoned

import (
	"fmt"
	"strings"
)

// SkippedBehavior decides what happens to a wall time that does not exist
// because the clock jumped forward.
type SkippedBehavior int

const (
	// SkippedSkip drops the occurrence.
	SkippedSkip SkippedBehavior = iota
	// SkippedEarlier resolves with the post-transition offset, which lands
	// before the gap.
	SkippedEarlier
	// SkippedLater resolves with the pre-transition offset, which lands
	// after the gap.
	SkippedLater
	// SkippedAfterTransition moves to the first valid minute after the gap.
	SkippedAfterTransition

	skippedBehaviorCount
)

// RepeatedBehavior decides what happens to a wall time that occurs twice
// because the clock jumped backward.
type RepeatedBehavior int

const (
	RepeatedSkip RepeatedBehavior = iota
	RepeatedEarlier
	RepeatedLater
	// RepeatedBoth yields both instants, earlier first.
	RepeatedBoth

	repeatedBehaviorCount
)

var skippedNames = [...]string{
	SkippedSkip:            "skip",
	SkippedEarlier:         "earlier",
	SkippedLater:           "later",
	SkippedAfterTransition: "after_transition",
}

var repeatedNames = [...]string{
	RepeatedSkip:    "skip",
	RepeatedEarlier: "earlier",
	RepeatedLater:   "later",
	RepeatedBoth:    "both",
}

func (b SkippedBehavior) Valid() bool { return b >= 0 && b < skippedBehaviorCount }

func (b SkippedBehavior) String() string {
	if !b.Valid() {
		return fmt.Sprintf("SkippedBehavior(%d)", int(b))
	}
	return skippedNames[b]
}

func (b RepeatedBehavior) Valid() bool { return b >= 0 && b < repeatedBehaviorCount }

func (b RepeatedBehavior) String() string {
	if !b.Valid() {
		return fmt.Sprintf("RepeatedBehavior(%d)", int(b))
	}
	return repeatedNames[b]
}

// ParseSkippedBehavior accepts the canonical names and the aliases
// "before", "after" and "close".
func ParseSkippedBehavior(s string) (SkippedBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip":
		return SkippedSkip, nil
	case "earlier", "before":
		return SkippedEarlier, nil
	case "later", "after":
		return SkippedLater, nil
	case "after_transition", "close":
		return SkippedAfterTransition, nil
	}
	return 0, fmt.Errorf("unknown skipped time behavior %q", s)
}

// ParseRepeatedBehavior accepts the canonical names and the alias "twice".
func ParseRepeatedBehavior(s string) (RepeatedBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip":
		return RepeatedSkip, nil
	case "earlier":
		return RepeatedEarlier, nil
	case "later":
		return RepeatedLater, nil
	case "both", "twice":
		return RepeatedBoth, nil
	}
	return 0, fmt.Errorf("unknown repeated time behavior %q", s)
}

func (b SkippedBehavior) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *SkippedBehavior) UnmarshalText(p []byte) error {
	v, err := ParseSkippedBehavior(string(p))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b RepeatedBehavior) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *RepeatedBehavior) UnmarshalText(p []byte) error {
	v, err := ParseRepeatedBehavior(string(p))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
