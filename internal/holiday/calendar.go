// Package holiday provides working-day calendars used by schedule filters.
//
// It currently supports:
//   - an in-memory calendar (Static)
//   - a YAML/JSON file loaded into a Static calendar
//   - a SQLite table with write-through Add/Remove
package holiday

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrInvalidDate = errors.New("holiday: invalid date")

// Calendar answers holiday questions for the calendar date of t in t's location.
type Calendar interface {
	IsHoliday(t time.Time) bool
	IsWorkingDay(t time.Time) bool
}

// Date is a civil calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// WeekdayFromISO maps ISO day numbers (1 = Monday, 7 = Sunday).
func WeekdayFromISO(n int) (time.Weekday, error) {
	if n < 1 || n > 7 {
		return 0, fmt.Errorf("holiday: weekday %d out of [1, 7]", n)
	}
	return time.Weekday(n % 7), nil
}

var defaultWeekend = []time.Weekday{time.Saturday, time.Sunday}

// Static is an in-memory calendar. It is safe for concurrent use.
type Static struct {
	mu      sync.RWMutex
	days    map[Date]string
	weekend map[time.Weekday]bool
}

// NewStatic returns an empty calendar. Without arguments the weekend is
// Saturday and Sunday.
func NewStatic(weekend ...time.Weekday) *Static {
	if len(weekend) == 0 {
		weekend = defaultWeekend
	}
	s := &Static{days: map[Date]string{}, weekend: map[time.Weekday]bool{}}
	for _, d := range weekend {
		s.weekend[d] = true
	}
	return s
}

func (s *Static) IsHoliday(t time.Time) bool {
	_, ok := s.Name(DateOf(t))
	return ok
}

func (s *Static) IsWorkingDay(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.weekend[t.Weekday()] {
		return false
	}
	_, ok := s.days[DateOf(t)]
	return !ok
}

// Add registers (or renames) a holiday.
func (s *Static) Add(d Date, name string) {
	s.mu.Lock()
	s.days[d] = strings.TrimSpace(name)
	s.mu.Unlock()
}

// Remove deletes a holiday and returns its name.
func (s *Static) Remove(d Date) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.days[d]
	if ok {
		delete(s.days, d)
	}
	return name, ok
}

func (s *Static) Name(d Date) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.days[d]
	return name, ok
}

// Lookup returns the dates whose name contains name, ignoring case.
func (s *Static) Lookup(name string) []Date {
	needle := strings.ToLower(strings.TrimSpace(name))
	s.mu.RLock()
	var out []Date
	for d, n := range s.days {
		if needle != "" && strings.Contains(strings.ToLower(n), needle) {
			out = append(out, d)
		}
	}
	s.mu.RUnlock()
	sortDates(out)
	return out
}

// Dates returns all holidays in ascending order.
func (s *Static) Dates() []Date {
	s.mu.RLock()
	out := make([]Date, 0, len(s.days))
	for d := range s.days {
		out = append(out, d)
	}
	s.mu.RUnlock()
	sortDates(out)
	return out
}

func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days)
}

func (s *Static) Close() error { return nil }

func sortDates(ds []Date) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].Before(ds[j]) })
}
