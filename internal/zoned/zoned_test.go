package zoned

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func formatAll(ts []time.Time) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Format(time.RFC3339))
	}
	return out
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "08:00", want: NewTimeOfDay(8, 0, 0)},
		{in: " 23:59:59 ", want: NewTimeOfDay(23, 59, 59)},
		{in: "00:00:00", want: NewTimeOfDay(0, 0, 0)},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12", wantErr: true},
		{in: "aa:bb", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseTimeOfDay(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestReplaceSkipped(t *testing.T) {
	t.Parallel()
	berlin := mustLoc(t, "Europe/Berlin")
	date := time.Date(2001, 3, 25, 12, 0, 0, 0, berlin)

	cases := []struct {
		behavior SkippedBehavior
		want     []string
	}{
		{SkippedSkip, []string{}},
		{SkippedEarlier, []string{"2001-03-25T01:30:00+01:00"}},
		{SkippedLater, []string{"2001-03-25T03:30:00+02:00"}},
		{SkippedAfterTransition, []string{"2001-03-25T03:00:00+02:00"}},
	}
	for _, tc := range cases {
		r, err := NewReplacer(NewTimeOfDay(2, 30, 0), tc.behavior, RepeatedSkip)
		if err != nil {
			t.Fatal(err)
		}
		got, err := r.Replace(date)
		if err != nil {
			t.Fatalf("%v: %v", tc.behavior, err)
		}
		if diff := cmp.Diff(tc.want, formatAll(got)); diff != "" {
			t.Fatalf("%v: mismatch (-want +got):\n%s", tc.behavior, diff)
		}
	}
}

func TestReplaceRepeated(t *testing.T) {
	t.Parallel()
	berlin := mustLoc(t, "Europe/Berlin")
	date := time.Date(2001, 10, 28, 0, 0, 0, 0, berlin)

	cases := []struct {
		behavior RepeatedBehavior
		want     []string
	}{
		{RepeatedSkip, []string{}},
		{RepeatedEarlier, []string{"2001-10-28T02:30:00+02:00"}},
		{RepeatedLater, []string{"2001-10-28T02:30:00+01:00"}},
		{RepeatedBoth, []string{"2001-10-28T02:30:00+02:00", "2001-10-28T02:30:00+01:00"}},
	}
	for _, tc := range cases {
		r, err := NewReplacer(NewTimeOfDay(2, 30, 0), SkippedSkip, tc.behavior)
		if err != nil {
			t.Fatal(err)
		}
		got, err := r.Replace(date)
		if err != nil {
			t.Fatalf("%v: %v", tc.behavior, err)
		}
		if diff := cmp.Diff(tc.want, formatAll(got)); diff != "" {
			t.Fatalf("%v: mismatch (-want +got):\n%s", tc.behavior, diff)
		}
	}
}

func TestResolveSignals(t *testing.T) {
	t.Parallel()
	berlin := mustLoc(t, "Europe/Berlin")
	tod := NewTimeOfDay(2, 30, 0)

	r := Replacer{Time: tod, Skipped: SkippedSkip, Repeated: RepeatedSkip}
	if _, err := r.Resolve(time.Date(2001, 3, 25, 1, 0, 0, 0, berlin)); !errors.Is(err, ErrTimeSkipped) {
		t.Fatalf("skipped: got %v, want ErrTimeSkipped", err)
	}
	if _, err := r.Resolve(time.Date(2001, 10, 28, 1, 0, 0, 0, berlin)); !errors.Is(err, ErrTimeSkipped) {
		t.Fatalf("repeated skip: got %v, want ErrTimeSkipped", err)
	}

	r.Repeated = RepeatedBoth
	_, err := r.Resolve(time.Date(2001, 10, 28, 1, 0, 0, 0, berlin))
	var twice *TimeTwiceError
	if !errors.As(err, &twice) {
		t.Fatalf("got %v, want *TimeTwiceError", err)
	}
	if got := twice.Earlier.Format(time.RFC3339); got != "2001-10-28T02:30:00+02:00" {
		t.Fatalf("earlier = %s", got)
	}
	if got := twice.Later.Format(time.RFC3339); got != "2001-10-28T02:30:00+01:00" {
		t.Fatalf("later = %s", got)
	}

	got, err := r.Resolve(time.Date(2001, 6, 1, 0, 0, 0, 0, berlin))
	if err != nil {
		t.Fatal(err)
	}
	if s := got.Format(time.RFC3339); s != "2001-06-01T02:30:00+02:00" {
		t.Fatalf("exact = %s", s)
	}
}

func TestAfterTransitionLeavesGap(t *testing.T) {
	t.Parallel()

	cases := []struct {
		zone string
		date time.Time
		gap  time.Time // first instant after the gap
	}{
		{"Europe/Berlin", time.Date(2001, 3, 25, 0, 0, 0, 0, time.UTC), time.Date(2001, 3, 25, 1, 0, 0, 0, time.UTC)},
		{"America/New_York", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		loc := mustLoc(t, tc.zone)
		y, m, d := tc.date.Date()
		date := time.Date(y, m, d, 12, 0, 0, 0, loc)
		for minute := 0; minute < 60; minute++ {
			tod := NewTimeOfDay(2, minute, 17)
			r := Replacer{Time: tod, Skipped: SkippedAfterTransition, Repeated: RepeatedEarlier}
			got, err := r.Resolve(date)
			if err != nil {
				t.Fatalf("%s %s: %v", tc.zone, tod, err)
			}
			if got.Before(tc.gap) {
				t.Fatalf("%s %s: %s is before the transition", tc.zone, tod, got)
			}
			if _, _, kind := Lookup(got, Of(got)); kind != KindExact {
				t.Fatalf("%s %s: %s resolved into %v time", tc.zone, tod, got, kind)
			}
			if h, mi, _ := got.Clock(); h != 3 || mi != 0 {
				t.Fatalf("%s %s: got %s, want 03:00", tc.zone, tod, got.Format(time.RFC3339))
			}
		}
	}
}

func TestEveryBehaviorIsHandled(t *testing.T) {
	t.Parallel()
	berlin := mustLoc(t, "Europe/Berlin")
	dates := []time.Time{
		time.Date(2001, 3, 25, 12, 0, 0, 0, berlin),
		time.Date(2001, 10, 28, 12, 0, 0, 0, berlin),
		time.Date(2001, 6, 1, 12, 0, 0, 0, berlin),
	}
	for s := SkippedBehavior(0); s < skippedBehaviorCount; s++ {
		for r := RepeatedBehavior(0); r < repeatedBehaviorCount; r++ {
			rep, err := NewReplacer(NewTimeOfDay(2, 30, 0), s, r)
			if err != nil {
				t.Fatal(err)
			}
			for _, d := range dates {
				if _, err := rep.Replace(d); err != nil {
					t.Fatalf("%v/%v on %s: %v", s, r, d.Format("2006-01-02"), err)
				}
			}
		}
	}

	if _, err := NewReplacer(NewTimeOfDay(2, 30, 0), skippedBehaviorCount, RepeatedSkip); !errors.Is(err, ErrInvalidBehavior) {
		t.Fatalf("got %v, want ErrInvalidBehavior", err)
	}
	if _, err := NewReplacer(NewTimeOfDay(2, 30, 0), SkippedSkip, RepeatedBehavior(-1)); !errors.Is(err, ErrInvalidBehavior) {
		t.Fatalf("got %v, want ErrInvalidBehavior", err)
	}
}

func TestParseBehaviors(t *testing.T) {
	t.Parallel()
	for s := SkippedBehavior(0); s < skippedBehaviorCount; s++ {
		got, err := ParseSkippedBehavior(s.String())
		if err != nil || got != s {
			t.Fatalf("round trip %v: got %v, %v", s, got, err)
		}
	}
	for r := RepeatedBehavior(0); r < repeatedBehaviorCount; r++ {
		got, err := ParseRepeatedBehavior(r.String())
		if err != nil || got != r {
			t.Fatalf("round trip %v: got %v, %v", r, got, err)
		}
	}
	if got, _ := ParseSkippedBehavior("close"); got != SkippedAfterTransition {
		t.Fatalf("close alias = %v", got)
	}
	if got, _ := ParseRepeatedBehavior("twice"); got != RepeatedBoth {
		t.Fatalf("twice alias = %v", got)
	}
	if _, err := ParseSkippedBehavior("sometimes"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFindTransitions(t *testing.T) {
	t.Parallel()
	tr := FindTransitions(mustLoc(t, "Europe/Berlin"), 2001)
	if len(tr.Forward) != 1 || len(tr.Backward) != 1 {
		t.Fatalf("got %d forward, %d backward", len(tr.Forward), len(tr.Backward))
	}
	want := Window{From: NewTimeOfDay(2, 0, 0), To: NewTimeOfDay(3, 0, 0)}
	if tr.Forward[0].From != want.From || tr.Forward[0].To != want.To {
		t.Fatalf("forward = %v", tr.Forward[0])
	}
	if tr.Backward[0].From != want.From || tr.Backward[0].To != want.To {
		t.Fatalf("backward = %v", tr.Backward[0])
	}
	if got := tr.Forward[0].At.UTC(); !got.Equal(time.Date(2001, 3, 25, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("forward at %s", got)
	}

	if tr := FindTransitions(time.UTC, 2001); len(tr.Forward)+len(tr.Backward) != 0 {
		t.Fatalf("utc has transitions: %+v", tr)
	}
}

func TestCheckDSTHandling(t *testing.T) {
	t.Parallel()
	berlin := mustLoc(t, "Europe/Berlin")
	skip := SkippedEarlier
	rep := RepeatedLater

	cases := []struct {
		name     string
		loc      *time.Location
		tod      TimeOfDay
		skipped  *SkippedBehavior
		repeated *RepeatedBehavior
		wantS    SkippedBehavior
		wantR    RepeatedBehavior
		wantErr  bool
	}{
		{name: "outside window", loc: berlin, tod: NewTimeOfDay(8, 0, 0), wantS: DefaultSkipped, wantR: DefaultRepeated},
		{name: "inside window", loc: berlin, tod: NewTimeOfDay(2, 30, 0), wantErr: true},
		{name: "only skipped set", loc: berlin, tod: NewTimeOfDay(2, 30, 0), skipped: &skip, wantErr: true},
		{name: "both set", loc: berlin, tod: NewTimeOfDay(2, 30, 0), skipped: &skip, repeated: &rep, wantS: skip, wantR: rep},
		{name: "window edge", loc: berlin, tod: NewTimeOfDay(3, 0, 0), wantS: DefaultSkipped, wantR: DefaultRepeated},
		{name: "utc", loc: time.UTC, tod: NewTimeOfDay(2, 30, 0), wantS: DefaultSkipped, wantR: DefaultRepeated},
	}
	for _, tc := range cases {
		s, r, err := CheckDSTHandling(tc.loc, 2001, tc.tod, tc.skipped, tc.repeated)
		if tc.wantErr {
			if !errors.Is(err, ErrBehaviorRequired) {
				t.Fatalf("%s: got %v, want ErrBehaviorRequired", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if s != tc.wantS || r != tc.wantR {
			t.Fatalf("%s: got %v/%v, want %v/%v", tc.name, s, r, tc.wantS, tc.wantR)
		}
	}
}
