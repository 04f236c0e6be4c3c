package producer

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron fires on a cron expression. Descriptors like "@daily" and
// "@every 90s" are accepted.
type Cron struct {
	base
	spec  string
	sched cron.Schedule
}

func NewCron(spec string, opts ...Option) (*Cron, error) {
	spec = strings.TrimSpace(spec)
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("producer: cron %q: %w", spec, err)
	}
	return &Cron{base: newOptions(opts).base(), spec: spec, sched: sched}, nil
}

func (p *Cron) Next(after time.Time) (time.Time, error) {
	cur := after
	return loop(func() (time.Time, bool, error) {
		next := p.sched.Next(cur.In(p.loc))
		if next.IsZero() {
			return time.Time{}, false, fmt.Errorf("%w: cron %q after %s", ErrNoOccurrence, p.spec, cur.Format(time.RFC3339))
		}
		if p.allowed(next) {
			return next, true, nil
		}
		cur = next
		return time.Time{}, false, nil
	})
}

func (p *Cron) String() string { return "cron " + p.spec }
