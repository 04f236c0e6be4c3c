package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"schedkit/internal/astro"
	"schedkit/internal/config"
	"schedkit/internal/holiday"
	"schedkit/internal/producer"
	"schedkit/internal/task/scheduler"
	"schedkit/internal/zoned"
)

// Builder turns job definitions into producers and scheduler jobs.
type Builder struct {
	Location *time.Location
	Observer astro.Observer
	// Calendar backs holiday filters. Nil rejects them.
	Calendar holiday.Calendar
	Cache    *producer.SunCache
	// Now fixes the DST check year and the default interval anchor.
	Now time.Time
}

// NewBuilder resolves the location and observer of cfg.
func NewBuilder(cfg *config.Config, cal holiday.Calendar, now time.Time) (*Builder, error) {
	loc, err := config.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return &Builder{
		Location: loc,
		Observer: astro.Observer{
			Latitude:  cfg.Location.Latitude,
			Longitude: cfg.Location.Longitude,
			Elevation: cfg.Location.Elevation,
		},
		Calendar: cal,
		Cache:    producer.NewSunCache(),
		Now:      now,
	}, nil
}

// Job builds the scheduler job for jc. The id is the job name.
func (b *Builder) Job(jc config.JobConfig, exec scheduler.Executor) (scheduler.Job, error) {
	name := strings.TrimSpace(jc.Name)
	path := "jobs[" + name + "]"
	id := scheduler.WithID(name)

	switch jc.TriggerKind() {
	case "at":
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(jc.At))
		if err != nil {
			return nil, fmt.Errorf("%s.at: %w", path, err)
		}
		j, err := scheduler.NewOneTimeJob(at, exec, id)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "countdown":
		d, err := config.ParseDurationField(path+".countdown", jc.Countdown)
		if err != nil {
			return nil, err
		}
		j, err := scheduler.NewCountdownJob(d, exec, id)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "":
		return nil, fmt.Errorf("%s: %w", path, config.ErrNoTrigger)
	}

	p, err := b.Producer(path, &jc.TriggerConfig)
	if err != nil {
		return nil, err
	}
	j, err := scheduler.NewDateTimeJob(p, exec, id)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Producer builds the producer for a repeating trigger: the leaf (or
// group) with its filter, then offset, earliest, latest and jitter.
func (b *Builder) Producer(path string, t *config.TriggerConfig) (producer.Producer, error) {
	var opts []producer.Option
	opts = append(opts, producer.WithLocation(b.Location))
	if t.Filter != nil {
		f, err := b.Filter(path+".filter", t.Filter)
		if err != nil {
			return nil, err
		}
		opts = append(opts, producer.WithFilter(f))
	}

	p, err := b.leaf(path, t, opts)
	if err != nil {
		return nil, err
	}

	if s := strings.TrimSpace(t.Offset); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s.offset: %w", path, err)
		}
		p = producer.NewOffset(p, d)
	}
	if c := t.Earliest; c != nil {
		r, err := b.replacer(path+".earliest", c.Time, c.IfSkipped, c.IfRepeated)
		if err != nil {
			return nil, err
		}
		p = producer.NewEarliest(p, r, b.Location)
	}
	if c := t.Latest; c != nil {
		r, err := b.replacer(path+".latest", c.Time, c.IfSkipped, c.IfRepeated)
		if err != nil {
			return nil, err
		}
		p = producer.NewLatest(p, r, b.Location)
	}
	if len(t.Jitter) > 0 {
		if len(t.Jitter) != 2 {
			return nil, fmt.Errorf("%s.jitter: want [low, high]", path)
		}
		lo, err := time.ParseDuration(strings.TrimSpace(t.Jitter[0]))
		if err != nil {
			return nil, fmt.Errorf("%s.jitter: %w", path, err)
		}
		hi, err := time.ParseDuration(strings.TrimSpace(t.Jitter[1]))
		if err != nil {
			return nil, fmt.Errorf("%s.jitter: %w", path, err)
		}
		if p, err = producer.NewJitter(p, lo, hi); err != nil {
			return nil, fmt.Errorf("%s.jitter: %w", path, err)
		}
	}
	return p, nil
}

func (b *Builder) leaf(path string, t *config.TriggerConfig, opts []producer.Option) (producer.Producer, error) {
	switch kind := t.TriggerKind(); kind {
	case "time":
		r, err := b.replacer(path, t.Time, t.IfSkipped, t.IfRepeated)
		if err != nil {
			return nil, err
		}
		return producer.NewFixedTime(r, opts...), nil

	case "every":
		every, err := config.ParseDurationField(path+".every", t.Every)
		if err != nil {
			return nil, err
		}
		anchor := b.Now
		if s := strings.TrimSpace(t.Anchor); s != "" {
			if anchor, err = time.Parse(time.RFC3339, s); err != nil {
				return nil, fmt.Errorf("%s.anchor: %w", path, err)
			}
		}
		p, err := producer.NewInterval(anchor, every, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s.every: %w", path, err)
		}
		return p, nil

	case "cron":
		p, err := producer.NewCron(t.Cron, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s.cron: %w", path, err)
		}
		return p, nil

	case "sun":
		fn, key, err := sunEvent(t.Sun)
		if err != nil {
			return nil, fmt.Errorf("%s.sun: %w", path, err)
		}
		opts = append(opts, producer.WithSunCache(b.Cache))
		p, err := producer.NewSun(fn, b.Observer, key, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s.sun: %w", path, err)
		}
		return p, nil

	case "group":
		members := make([]producer.Producer, 0, len(t.Group))
		for i := range t.Group {
			m, err := b.Producer(fmt.Sprintf("%s.group[%d]", path, i), &t.Group[i])
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		g, err := producer.NewGroup(members, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s.group: %w", path, err)
		}
		return g, nil

	case "":
		return nil, fmt.Errorf("%s: %w", path, config.ErrNoTrigger)
	default:
		return nil, fmt.Errorf("%s: %s is not a repeating trigger", path, kind)
	}
}

// replacer parses a wall clock time and settles its DST behaviors. A time
// that falls inside a transition of the current year needs them spelled
// out.
func (b *Builder) replacer(path, raw, skipped, repeated string) (zoned.Replacer, error) {
	tod, err := zoned.ParseTimeOfDay(raw)
	if err != nil {
		return zoned.Replacer{}, fmt.Errorf("%s.time: %w", path, err)
	}
	var sp *zoned.SkippedBehavior
	if skipped != "" {
		v, err := zoned.ParseSkippedBehavior(skipped)
		if err != nil {
			return zoned.Replacer{}, fmt.Errorf("%s.if_skipped: %w", path, err)
		}
		sp = &v
	}
	var rp *zoned.RepeatedBehavior
	if repeated != "" {
		v, err := zoned.ParseRepeatedBehavior(repeated)
		if err != nil {
			return zoned.Replacer{}, fmt.Errorf("%s.if_repeated: %w", path, err)
		}
		rp = &v
	}
	s, r, err := zoned.CheckDSTHandling(b.Location, b.Now.In(b.Location).Year(), tod, sp, rp)
	if err != nil {
		return zoned.Replacer{}, fmt.Errorf("%s: %w", path, err)
	}
	rep, err := zoned.NewReplacer(tod, s, r)
	if err != nil {
		return zoned.Replacer{}, fmt.Errorf("%s: %w", path, err)
	}
	return rep, nil
}

// Filter combines the set fields of fc with AND.
func (b *Builder) Filter(path string, fc *config.FilterConfig) (producer.Filter, error) {
	var fs []producer.Filter
	if len(fc.Weekdays) > 0 {
		f, err := producer.NewWeekdays(fc.Weekdays...)
		if err != nil {
			return nil, fmt.Errorf("%s.weekdays: %w", path, err)
		}
		fs = append(fs, f)
	}
	if len(fc.Days) > 0 {
		f, err := producer.NewDaysOfMonth(fc.Days...)
		if err != nil {
			return nil, fmt.Errorf("%s.days: %w", path, err)
		}
		fs = append(fs, f)
	}
	if len(fc.Months) > 0 {
		f, err := producer.NewMonths(fc.Months...)
		if err != nil {
			return nil, fmt.Errorf("%s.months: %w", path, err)
		}
		fs = append(fs, f)
	}
	if bw := fc.Between; bw != nil {
		lower, err := optionalTime(bw.From)
		if err != nil {
			return nil, fmt.Errorf("%s.between.from: %w", path, err)
		}
		upper, err := optionalTime(bw.To)
		if err != nil {
			return nil, fmt.Errorf("%s.between.to: %w", path, err)
		}
		f, err := producer.NewTimeRange(lower, upper)
		if err != nil {
			return nil, fmt.Errorf("%s.between: %w", path, err)
		}
		fs = append(fs, f)
	}
	if mode := strings.ToLower(strings.TrimSpace(fc.Holidays)); mode != "" {
		f, err := b.holidayFilter(mode)
		if err != nil {
			return nil, fmt.Errorf("%s.holidays: %w", path, err)
		}
		fs = append(fs, f)
	}
	if fc.Not != nil {
		inner, err := b.Filter(path+".not", fc.Not)
		if err != nil {
			return nil, err
		}
		fs = append(fs, producer.Not(inner))
	}
	if len(fs) == 1 {
		return fs[0], nil
	}
	return producer.All(fs...), nil
}

func (b *Builder) holidayFilter(mode string) (producer.Filter, error) {
	switch mode {
	case "only":
		return producer.Holiday(b.Calendar)
	case "skip":
		f, err := producer.Holiday(b.Calendar)
		if err != nil {
			return nil, err
		}
		return producer.Not(f), nil
	case "workdays":
		return producer.WorkingDay(b.Calendar)
	case "non_workdays":
		return producer.NotWorkingDay(b.Calendar)
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

func optionalTime(raw string) (*zoned.TimeOfDay, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	tod, err := zoned.ParseTimeOfDay(raw)
	if err != nil {
		return nil, err
	}
	return &tod, nil
}

var errUnknownSunEvent = errors.New("unknown sun event")

// sunEvent returns the event function for sc and its cache key.
func sunEvent(sc *config.SunConfig) (astro.EventFunc, string, error) {
	event := strings.ToLower(strings.TrimSpace(sc.Event))
	switch event {
	case "sunrise":
		return astro.Sunrise, event, nil
	case "sunset":
		return astro.Sunset, event, nil
	case "noon":
		return astro.Noon, event, nil
	case "dawn", "dusk":
		dep, err := depression(sc.Depression)
		if err != nil {
			return nil, "", err
		}
		key := fmt.Sprintf("%s:%g", event, float64(dep))
		if event == "dawn" {
			return astro.DawnAt(dep), key, nil
		}
		return astro.DuskAt(dep), key, nil
	case "elevation":
		dir, err := astro.ParseDirection(strings.ToLower(strings.TrimSpace(sc.Direction)))
		if err != nil {
			return nil, "", err
		}
		fn, err := astro.TimeAtElevation(sc.Elevation, dir)
		if err != nil {
			return nil, "", err
		}
		return fn, fmt.Sprintf("elevation:%g:%s", sc.Elevation, dir), nil
	case "azimuth":
		fn, err := astro.TimeAtAzimuth(sc.Azimuth)
		if err != nil {
			return nil, "", err
		}
		return fn, fmt.Sprintf("azimuth:%g", sc.Azimuth), nil
	}
	return nil, "", fmt.Errorf("%w %q", errUnknownSunEvent, sc.Event)
}

func depression(s string) (astro.Depression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "civil":
		return astro.Civil, nil
	case "nautical":
		return astro.Nautical, nil
	case "astronomical":
		return astro.Astronomical, nil
	}
	return 0, fmt.Errorf("unknown depression %q", s)
}
