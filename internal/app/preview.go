package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schedkit/internal/config"
	"schedkit/internal/holiday"
	"schedkit/internal/task/scheduler"
	logx "schedkit/pkg/logx"
)

var ErrUnknownJob = errors.New("unknown job")

// openCalendar opens the configured calendar when some filter needs it.
func openCalendar(ctx context.Context, cfg *config.Config) (holiday.Store, error) {
	if !cfg.UsesHolidays() {
		return nil, nil
	}
	hc, enabled, err := mapHolidayConfig(cfg)
	if err != nil || !enabled {
		return nil, err
	}
	return holiday.Open(ctx, hc, logx.Nop())
}

// Check validates cfg and builds every job the way the daemon would,
// including the DST check for wall clock times of the current year.
func Check(ctx context.Context, cfg *config.Config, now time.Time) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	cal, err := openCalendar(ctx, cfg)
	if err != nil {
		return fmt.Errorf("holidays: %w", err)
	}
	defer closeCalendar(cal)

	b, err := NewBuilder(cfg, cal, now)
	if err != nil {
		return err
	}
	noop := scheduler.SyncExecutor(func(context.Context) error { return nil })
	var errs []error
	for _, jc := range cfg.Jobs {
		if _, err := b.Job(jc, noop); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Upcoming is the preview of one job.
type Upcoming struct {
	Job   string
	Times []time.Time
	// Err stops the preview early, e.g. a filter that never matches.
	Err error
}

// Preview computes up to count firing times after from for each enabled
// job, or only for the job called name.
func Preview(ctx context.Context, cfg *config.Config, name string, from time.Time, count int) ([]Upcoming, error) {
	if count <= 0 {
		count = 1
	}
	cal, err := openCalendar(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("holidays: %w", err)
	}
	defer closeCalendar(cal)

	b, err := NewBuilder(cfg, cal, from)
	if err != nil {
		return nil, err
	}

	var out []Upcoming
	for _, jc := range cfg.Jobs {
		if name != "" && jc.Name != name {
			continue
		}
		if name == "" && jc.Disabled {
			continue
		}
		out = append(out, b.upcoming(jc, from, count))
	}
	if name != "" && len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return out, nil
}

func (b *Builder) upcoming(jc config.JobConfig, from time.Time, count int) Upcoming {
	u := Upcoming{Job: jc.Name}
	path := "jobs[" + jc.Name + "]"
	switch jc.TriggerKind() {
	case "at":
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(jc.At))
		if err != nil {
			u.Err = fmt.Errorf("%s.at: %w", path, err)
		} else if at.After(from) {
			u.Times = []time.Time{at.In(b.Location)}
		}
		return u
	case "countdown":
		d, err := config.ParseDurationField(path+".countdown", jc.Countdown)
		if err != nil {
			u.Err = err
		} else {
			u.Times = []time.Time{from.Add(d).In(b.Location)}
		}
		return u
	}

	p, err := b.Producer(path, &jc.TriggerConfig)
	if err != nil {
		u.Err = err
		return u
	}
	cur := from
	for range count {
		next, err := p.Next(cur)
		if err != nil {
			u.Err = err
			break
		}
		u.Times = append(u.Times, next.In(b.Location))
		cur = next
	}
	return u
}
