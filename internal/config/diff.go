package config

import (
	"reflect"
	"sort"
	"strings"

	logx "schedkit/pkg/logx"
)

// JobChanges lists job names by what happened to them between two
// configs. Each list is sorted.
type JobChanges struct {
	Added   []string
	Removed []string
	Changed []string
}

func (c JobChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// SummarizeConfigChange returns the changed top-level sections, log fields
// describing them and the per-job changes.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, JobChanges) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		changed = append(changed, "timezone")
		attrs = append(attrs, logx.String("timezone", strings.TrimSpace(newCfg.Timezone)))
	}
	if oldCfg.Location != newCfg.Location {
		changed = append(changed, "location")
		attrs = append(attrs,
			logx.Float64("location.latitude", newCfg.Location.Latitude),
			logx.Float64("location.longitude", newCfg.Location.Longitude),
		)
	}
	if !reflect.DeepEqual(oldCfg.Holidays, newCfg.Holidays) {
		changed = append(changed, "holidays")
		attrs = append(attrs,
			logx.String("holidays.driver", newCfg.Holidays.Driver),
			logx.String("holidays.path", newCfg.Holidays.Path),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alert_enabled", newCfg.Logging.Alert.Enabled),
		)
	}
	if oldCfg.TaskManager != newCfg.TaskManager {
		changed = append(changed, "task_manager")
		attrs = append(attrs,
			logx.String("task_manager.kind", newCfg.TaskManager.Kind),
			logx.Int("task_manager.limit", newCfg.TaskManager.Limit),
			logx.String("task_manager.policy", newCfg.TaskManager.Policy),
		)
	}

	jobs := diffJobs(oldCfg.Jobs, newCfg.Jobs)
	if !jobs.Empty() {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Int("jobs.added", len(jobs.Added)),
			logx.Int("jobs.removed", len(jobs.Removed)),
			logx.Int("jobs.changed", len(jobs.Changed)),
		)
	}
	return changed, attrs, jobs
}

func diffJobs(oldJobs, newJobs []JobConfig) JobChanges {
	byName := func(js []JobConfig) map[string]JobConfig {
		m := make(map[string]JobConfig, len(js))
		for _, j := range js {
			m[strings.TrimSpace(j.Name)] = j
		}
		return m
	}
	prev, next := byName(oldJobs), byName(newJobs)

	var out JobChanges
	for name, nj := range next {
		oj, ok := prev[name]
		switch {
		case !ok:
			out.Added = append(out.Added, name)
		case !reflect.DeepEqual(oj, nj):
			out.Changed = append(out.Changed, name)
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			out.Removed = append(out.Removed, name)
		}
	}
	sort.Strings(out.Added)
	sort.Strings(out.Removed)
	sort.Strings(out.Changed)
	return out
}
