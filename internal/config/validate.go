package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"schedkit/internal/zoned"
	logx "schedkit/pkg/logx"
)

var (
	ErrNoTrigger        = errors.New("no trigger")
	ErrTooManyTriggers  = errors.New("more than one trigger")
	ErrDuplicateJobName = errors.New("duplicate job name")
)

var (
	taskManagerKinds = []string{"", "parallel", "limiting_parallel", "sequential", "limiting_sequential", "sequential_dedup"}
	holidayDrivers   = []string{"", "none", "static", "file", "sqlite", "sqlite3"}
	sunEvents        = []string{"sunrise", "sunset", "noon", "dawn", "dusk", "elevation", "azimuth"}
	holidayModes     = []string{"only", "skip", "workdays", "non_workdays"}
)

// Validate checks the parts of cfg that do not need a calendar or a
// clock. All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := LoadLocation(cfg.Timezone); err != nil {
		add(fmt.Errorf("timezone: %w", err))
	}
	if lat := cfg.Location.Latitude; lat < -90 || lat > 90 {
		add(fmt.Errorf("location.latitude: %v out of range", lat))
	}
	if lon := cfg.Location.Longitude; lon < -180 || lon > 180 {
		add(fmt.Errorf("location.longitude: %v out of range", lon))
	}

	if lv := cfg.Logging.Level; lv != "" && !logx.ValidLevel(lv) {
		add(fmt.Errorf("logging.level: unknown level %q", lv))
	}
	if lv := cfg.Logging.Alert.MinLevel; lv != "" && !logx.ValidLevel(lv) {
		add(fmt.Errorf("logging.alert.min_level: unknown level %q", lv))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add(errors.New("logging.file.path: required when file logging is enabled"))
	}

	add(oneOf("holidays.driver", strings.ToLower(cfg.Holidays.Driver), holidayDrivers))
	if d := strings.ToLower(cfg.Holidays.Driver); d != "" && d != "none" && d != "static" && strings.TrimSpace(cfg.Holidays.Path) == "" {
		add(fmt.Errorf("holidays.path: required for driver %q", cfg.Holidays.Driver))
	}
	for _, wd := range cfg.Holidays.Weekend {
		if wd < 1 || wd > 7 {
			add(fmt.Errorf("holidays.weekend: %d is not an ISO weekday", wd))
		}
	}
	_, err := ParseDurationField("holidays.busy_timeout", cfg.Holidays.BusyTimeout)
	add(err)

	tm := cfg.TaskManager
	add(oneOf("task_manager.kind", tm.Kind, taskManagerKinds))
	if tm.Limit < 0 {
		add(errors.New("task_manager.limit must be >= 0"))
	}
	if tm.HistorySize < 0 {
		add(errors.New("task_manager.history_size must be >= 0"))
	}
	if tm.Retry.Max < 0 {
		add(errors.New("task_manager.retry.max must be >= 0"))
	}
	_, err = ParseDurationField("task_manager.retry.base", tm.Retry.Base)
	add(err)
	_, err = ParseDurationField("task_manager.retry.max_delay", tm.Retry.MaxDelay)
	add(err)

	seen := make(map[string]bool, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		path := fmt.Sprintf("jobs[%d]", i)
		name := strings.TrimSpace(j.Name)
		if name == "" {
			add(fmt.Errorf("%s.name: required", path))
		} else {
			path = fmt.Sprintf("jobs[%s]", name)
			if seen[name] {
				add(fmt.Errorf("%s: %w", path, ErrDuplicateJobName))
			}
			seen[name] = true
		}
		if len(j.Command) == 0 || strings.TrimSpace(j.Command[0]) == "" {
			add(fmt.Errorf("%s.command: required", path))
		}
		_, err := ParseDurationField(path+".timeout", j.Timeout)
		add(err)
		errs = append(errs, validateTrigger(path, &j.TriggerConfig, true)...)
	}
	return errors.Join(errs...)
}

// LoadLocation resolves a configured zone name. Empty means time.Local.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// TriggerKind names the single trigger set on t, or "" if none is.
func (t *TriggerConfig) TriggerKind() string {
	kinds := t.triggerKinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (t *TriggerConfig) triggerKinds() []string {
	var kinds []string
	set := func(ok bool, kind string) {
		if ok {
			kinds = append(kinds, kind)
		}
	}
	set(strings.TrimSpace(t.At) != "", "at")
	set(strings.TrimSpace(t.Countdown) != "", "countdown")
	set(strings.TrimSpace(t.Time) != "", "time")
	set(strings.TrimSpace(t.Every) != "", "every")
	set(t.Sun != nil, "sun")
	set(strings.TrimSpace(t.Cron) != "", "cron")
	set(len(t.Group) > 0, "group")
	return kinds
}

func validateTrigger(path string, t *TriggerConfig, top bool) []error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	kinds := t.triggerKinds()
	switch {
	case len(kinds) == 0:
		return []error{fmt.Errorf("%s: %w", path, ErrNoTrigger)}
	case len(kinds) > 1:
		return []error{fmt.Errorf("%s: %w: %s", path, ErrTooManyTriggers, strings.Join(kinds, ", "))}
	}

	switch kinds[0] {
	case "at", "countdown":
		if !top {
			add(fmt.Errorf("%s.%s: not allowed inside a group", path, kinds[0]))
		}
		if t.hasOperations() {
			add(fmt.Errorf("%s: %s does not take operations or filters", path, kinds[0]))
		}
		if kinds[0] == "at" {
			if _, err := time.Parse(time.RFC3339, strings.TrimSpace(t.At)); err != nil {
				add(fmt.Errorf("%s.at: %w", path, err))
			}
		} else {
			d, err := ParseDurationField(path+".countdown", t.Countdown)
			add(err)
			if err == nil && d <= 0 {
				add(fmt.Errorf("%s.countdown: must be > 0", path))
			}
		}
		return errs
	case "time":
		add(validateClock(path, t.Time, t.IfSkipped, t.IfRepeated))
	case "every":
		d, err := ParseDurationField(path+".every", t.Every)
		add(err)
		if err == nil && d <= 0 {
			add(fmt.Errorf("%s.every: must be > 0", path))
		}
		if a := strings.TrimSpace(t.Anchor); a != "" {
			if _, err := time.Parse(time.RFC3339, a); err != nil {
				add(fmt.Errorf("%s.anchor: %w", path, err))
			}
		}
	case "sun":
		add(oneOf(path+".sun.event", strings.ToLower(t.Sun.Event), sunEvents))
		switch strings.ToLower(t.Sun.Event) {
		case "dawn", "dusk":
			add(oneOf(path+".sun.depression", strings.ToLower(t.Sun.Depression), []string{"", "civil", "nautical", "astronomical"}))
		case "elevation":
			add(oneOf(path+".sun.direction", strings.ToLower(t.Sun.Direction), []string{"rising", "setting"}))
		case "azimuth":
			if t.Sun.Azimuth < 0 || t.Sun.Azimuth >= 360 {
				add(fmt.Errorf("%s.sun.azimuth: %v out of range [0, 360)", path, t.Sun.Azimuth))
			}
		}
	case "group":
		for i := range t.Group {
			errs = append(errs, validateTrigger(fmt.Sprintf("%s.group[%d]", path, i), &t.Group[i], false)...)
		}
	}

	if t.Offset != "" {
		if _, err := time.ParseDuration(strings.TrimSpace(t.Offset)); err != nil {
			add(fmt.Errorf("%s.offset: %w", path, err))
		}
	}
	if c := t.Earliest; c != nil {
		add(validateClock(path+".earliest", c.Time, c.IfSkipped, c.IfRepeated))
	}
	if c := t.Latest; c != nil {
		add(validateClock(path+".latest", c.Time, c.IfSkipped, c.IfRepeated))
	}
	if len(t.Jitter) > 0 {
		add(validateJitter(path+".jitter", t.Jitter))
	}
	if t.Filter != nil {
		errs = append(errs, validateFilter(path+".filter", t.Filter)...)
	}
	return errs
}

func (t *TriggerConfig) hasOperations() bool {
	return t.Offset != "" || t.Earliest != nil || t.Latest != nil || len(t.Jitter) > 0 || t.Filter != nil
}

func validateClock(path, tod, skipped, repeated string) error {
	if _, err := zoned.ParseTimeOfDay(tod); err != nil {
		return fmt.Errorf("%s.time: %w", path, err)
	}
	if skipped != "" {
		if _, err := zoned.ParseSkippedBehavior(skipped); err != nil {
			return fmt.Errorf("%s.if_skipped: %w", path, err)
		}
	}
	if repeated != "" {
		if _, err := zoned.ParseRepeatedBehavior(repeated); err != nil {
			return fmt.Errorf("%s.if_repeated: %w", path, err)
		}
	}
	return nil
}

func validateJitter(path string, raw []string) error {
	if len(raw) != 2 {
		return fmt.Errorf("%s: want [low, high], got %d values", path, len(raw))
	}
	lo, err := time.ParseDuration(strings.TrimSpace(raw[0]))
	if err != nil {
		return fmt.Errorf("%s[0]: %w", path, err)
	}
	hi, err := time.ParseDuration(strings.TrimSpace(raw[1]))
	if err != nil {
		return fmt.Errorf("%s[1]: %w", path, err)
	}
	if lo >= hi {
		return fmt.Errorf("%s: low %s must be before high %s", path, lo, hi)
	}
	return nil
}

func validateFilter(path string, f *FilterConfig) []error {
	var errs []error
	check := func(name string, vals []int, lo, hi int) {
		for _, v := range vals {
			if v < lo || v > hi {
				errs = append(errs, fmt.Errorf("%s.%s: %d out of range [%d, %d]", path, name, v, lo, hi))
			}
		}
	}
	check("weekdays", f.Weekdays, 1, 7)
	check("days", f.Days, 1, 31)
	check("months", f.Months, 1, 12)
	if b := f.Between; b != nil {
		if b.From == "" && b.To == "" {
			errs = append(errs, fmt.Errorf("%s.between: from or to is required", path))
		}
		for _, s := range []string{b.From, b.To} {
			if s == "" {
				continue
			}
			if _, err := zoned.ParseTimeOfDay(s); err != nil {
				errs = append(errs, fmt.Errorf("%s.between: %w", path, err))
			}
		}
	}
	if f.Holidays != "" {
		if err := oneOf(path+".holidays", strings.ToLower(f.Holidays), holidayModes); err != nil {
			errs = append(errs, err)
		}
	}
	if f.Not != nil {
		errs = append(errs, validateFilter(path+".not", f.Not)...)
	}
	return errs
}

// UsesHolidays reports whether any trigger filter needs a calendar.
func (c *Config) UsesHolidays() bool {
	for i := range c.Jobs {
		if c.Jobs[i].usesHolidays() {
			return true
		}
	}
	return false
}

func (t *TriggerConfig) usesHolidays() bool {
	for f := t.Filter; f != nil; f = f.Not {
		if f.Holidays != "" {
			return true
		}
	}
	for i := range t.Group {
		if t.Group[i].usesHolidays() {
			return true
		}
	}
	return false
}

func oneOf(path, v string, allowed []string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q", path, v)
}
