package producer

import (
	"time"

	"schedkit/internal/holiday"
)

type calendarFilter struct {
	cal   holiday.Calendar
	allow func(cal holiday.Calendar, t time.Time) bool
}

func (f calendarFilter) Allow(t time.Time) bool { return f.allow(f.cal, t) }

func newCalendarFilter(cal holiday.Calendar, allow func(holiday.Calendar, time.Time) bool) (Filter, error) {
	if cal == nil {
		return nil, ErrNoCalendar
	}
	return calendarFilter{cal: cal, allow: allow}, nil
}

// Holiday allows holidays only.
func Holiday(cal holiday.Calendar) (Filter, error) {
	return newCalendarFilter(cal, holiday.Calendar.IsHoliday)
}

// WorkingDay allows days that are neither holidays nor weekend days.
func WorkingDay(cal holiday.Calendar) (Filter, error) {
	return newCalendarFilter(cal, holiday.Calendar.IsWorkingDay)
}

// NotWorkingDay allows holidays and weekend days.
func NotWorkingDay(cal holiday.Calendar) (Filter, error) {
	return newCalendarFilter(cal, func(c holiday.Calendar, t time.Time) bool { return !c.IsWorkingDay(t) })
}
