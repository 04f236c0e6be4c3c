package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
timezone: Europe/Berlin
location: {latitude: 52.52, longitude: 13.405}
holidays: {driver: file, path: ./holidays.yaml, weekend: [6, 7]}
logging: {level: debug, console: true}
task_manager: {kind: limiting_parallel, limit: 2, policy: cancel_first}
jobs:
  - name: backup
    command: [/usr/bin/backup, --fast]
    time: "03:30"
    if_skipped: later
    filter:
      weekdays: [1, 2, 3, 4, 5]
      holidays: skip
  - name: lights
    command: [lightctl, "on"]
    sun: {event: sunset}
    offset: -15m
    latest: {time: "22:00"}
  - name: poll
    command: [poll]
    every: 10m
    anchor: "2024-01-01T00:00:00Z"
    jitter: [-30s, 30s]
`

const sampleJSON = `{
  "timezone": "Europe/Berlin",
  "location": {"latitude": 52.52, "longitude": 13.405},
  "holidays": {"driver": "file", "path": "./holidays.yaml", "weekend": [6, 7]},
  "logging": {"level": "debug", "console": true},
  "task_manager": {"kind": "limiting_parallel", "limit": 2, "policy": "cancel_first"},
  "jobs": [
    {"name": "backup", "command": ["/usr/bin/backup", "--fast"], "time": "03:30", "if_skipped": "later",
     "filter": {"weekdays": [1, 2, 3, 4, 5], "holidays": "skip"}},
    {"name": "lights", "command": ["lightctl", "on"], "sun": {"event": "sunset"}, "offset": "-15m",
     "latest": {"time": "22:00"}},
    {"name": "poll", "command": ["poll"], "every": "10m", "anchor": "2024-01-01T00:00:00Z",
     "jitter": ["-30s", "30s"]}
  ]
}`

func TestDecodeYAMLMatchesJSON(t *testing.T) {
	t.Parallel()

	fromYAML, err := Decode("c.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	fromJSON, err := Decode("c.json", []byte(sampleJSON))
	require.NoError(t, err)

	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Fatalf("yaml and json differ (-json +yaml):\n%s", diff)
	}
	require.NoError(t, Validate(fromYAML))
	require.Equal(t, "time", fromYAML.Jobs[0].TriggerKind())
	require.Equal(t, "sun", fromYAML.Jobs[1].TriggerKind())
	require.True(t, fromYAML.UsesHolidays())
}

func TestDecodeIsStrict(t *testing.T) {
	t.Parallel()

	_, err := Decode("c.json", []byte(`{"timezone": "UTC", "unknown": 1}`))
	require.Error(t, err)

	_, err = Decode("c.json", []byte(`{"timezone": "UTC"} {}`))
	require.Error(t, err)

	_, err = Decode("c.yml", []byte("jobs:\n  - name: x\n    cron_spec: '* * * * *'\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	job := func(mod func(j *JobConfig)) *Config {
		j := JobConfig{Name: "j", Command: []string{"true"}, TriggerConfig: TriggerConfig{Every: "1m"}}
		if mod != nil {
			mod(&j)
		}
		return &Config{Jobs: []JobConfig{j}}
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
		wantMsg string
	}{
		{name: "ok", cfg: job(nil)},
		{name: "no trigger", cfg: job(func(j *JobConfig) { j.Every = "" }), wantErr: ErrNoTrigger},
		{name: "two triggers", cfg: job(func(j *JobConfig) { j.Cron = "* * * * *" }), wantErr: ErrTooManyTriggers},
		{name: "bad duration", cfg: job(func(j *JobConfig) { j.Every = "soon" }), wantMsg: "jobs[j].every"},
		{name: "zero interval", cfg: job(func(j *JobConfig) { j.Every = "0s" }), wantMsg: "must be > 0"},
		{name: "no command", cfg: job(func(j *JobConfig) { j.Command = nil }), wantMsg: "jobs[j].command"},
		{name: "bad time", cfg: job(func(j *JobConfig) { j.Every, j.Time = "", "25:00" }), wantMsg: "jobs[j].time"},
		{name: "bad behavior", cfg: job(func(j *JobConfig) { j.Every, j.Time, j.IfRepeated = "", "02:30", "maybe" }), wantMsg: "if_repeated"},
		{name: "bad weekday", cfg: job(func(j *JobConfig) { j.Filter = &FilterConfig{Weekdays: []int{0}} }), wantMsg: "weekdays"},
		{name: "nested not", cfg: job(func(j *JobConfig) { j.Filter = &FilterConfig{Not: &FilterConfig{Months: []int{13}}} }), wantMsg: "filter.not.months"},
		{name: "jitter order", cfg: job(func(j *JobConfig) { j.Jitter = []string{"1m", "-1m"} }), wantMsg: "jitter"},
		{name: "at with filter", cfg: job(func(j *JobConfig) {
			j.Every, j.At, j.Filter = "", "2030-01-01T00:00:00Z", &FilterConfig{Days: []int{1}}
		}), wantMsg: "does not take operations"},
		{name: "countdown in group", cfg: job(func(j *JobConfig) {
			j.Every, j.Group = "", []TriggerConfig{{Countdown: "1m"}}
		}), wantMsg: "not allowed inside a group"},
		{name: "group member error", cfg: job(func(j *JobConfig) {
			j.Every, j.Group = "", []TriggerConfig{{Time: "07:00"}, {}}
		}), wantErr: ErrNoTrigger},
		{name: "sun direction", cfg: job(func(j *JobConfig) {
			j.Every, j.Sun = "", &SunConfig{Event: "elevation", Elevation: 10}
		}), wantMsg: "sun.direction"},
		{name: "duplicate names", cfg: &Config{Jobs: []JobConfig{
			{Name: "a", Command: []string{"x"}, TriggerConfig: TriggerConfig{Every: "1m"}},
			{Name: "a", Command: []string{"x"}, TriggerConfig: TriggerConfig{Every: "2m"}},
		}}, wantErr: ErrDuplicateJobName},
		{name: "timezone", cfg: &Config{Timezone: "Mars/Olympus"}, wantMsg: "timezone"},
		{name: "log level", cfg: &Config{Logging: LoggingConfig{Level: "loud"}}, wantMsg: "logging.level"},
		{name: "task manager kind", cfg: &Config{TaskManager: TaskManagerConfig{Kind: "pool"}}, wantMsg: "task_manager.kind"},
		{name: "holidays path", cfg: &Config{Holidays: HolidaysConfig{Driver: "sqlite"}}, wantMsg: "holidays.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.cfg)
			if tt.wantErr == nil && tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantMsg != "" {
				require.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestApplyEnvOverridesFileValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Timezone: "UTC",
		Location: LocationConfig{Latitude: 1, Longitude: 2},
		Logging:  LoggingConfig{Level: "info"},
		Holidays: HolidaysConfig{Driver: "file", Path: "a.yaml"},
	}
	err := applyEnv(context.Background(), cfg, envconfig.MapLookuper(map[string]string{
		"SCHEDKIT_TIMEZONE":      "Europe/Berlin",
		"SCHEDKIT_LATITUDE":      "52.5",
		"SCHEDKIT_HOLIDAYS_PATH": "b.yaml",
		"LOG_LEVEL":              "trace",
	}))
	require.NoError(t, err)

	want := &Config{
		Timezone: "Europe/Berlin",
		Location: LocationConfig{Latitude: 52.5, Longitude: 2},
		Logging:  LoggingConfig{Level: "info"},
		Holidays: HolidaysConfig{Driver: "file", Path: "b.yaml"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	t.Parallel()

	err := applyEnv(context.Background(), &Config{}, envconfig.MapLookuper(map[string]string{
		"SCHEDKIT_LONGITUDE": "east",
	}))
	require.Error(t, err)
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	every := func(name, d string) JobConfig {
		return JobConfig{Name: name, Command: []string{"x"}, TriggerConfig: TriggerConfig{Every: d}}
	}
	oldCfg := &Config{
		Logging: LoggingConfig{Level: "info"},
		Jobs:    []JobConfig{every("a", "1m"), every("b", "1m"), every("c", "1m")},
	}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Jobs:    []JobConfig{every("a", "1m"), every("c", "5m"), every("d", "1m")},
	}

	sections, attrs, jobs := SummarizeConfigChange(oldCfg, newCfg)
	require.Equal(t, []string{"logging", "jobs"}, sections)
	require.NotEmpty(t, attrs)
	want := JobChanges{Added: []string{"d"}, Removed: []string{"b"}, Changed: []string{"c"}}
	if diff := cmp.Diff(want, jobs); diff != "" {
		t.Fatalf("job changes (-want +got):\n%s", diff)
	}

	sections, _, jobs = SummarizeConfigChange(newCfg, newCfg)
	require.Empty(t, sections)
	require.True(t, jobs.Empty())
}

func TestManagerReloadPublishesChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schedkit.json")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write(`{"timezone": "UTC", "jobs": [{"name": "a", "command": ["true"], "every": "1m"}]}`)

	m := NewManager(path)
	ctx := context.Background()
	cfg, err := m.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cfg.Jobs, 1)

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	changed, err := m.Reload(ctx)
	require.NoError(t, err)
	require.False(t, changed, "unchanged content must not publish")

	write(`{"timezone": "UTC", "jobs": [{"name": "a", "command": ["true"], "every": "2m"}]}`)
	changed, err = m.Reload(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	got := <-sub
	require.Equal(t, "2m", got.Jobs[0].Every)
	require.Same(t, got, m.Get())

	write(`{"timezone": "UTC", "jobs": [{"name": "a", "command": ["true"]}]}`)
	_, err = m.Reload(ctx)
	require.ErrorIs(t, err, ErrNoTrigger)
	require.Equal(t, "2m", m.Get().Jobs[0].Every, "rejected config must not be committed")

	m.SetValidator(func(context.Context, *Config) error { return errors.New("vetoed") })
	write(`{"timezone": "UTC", "jobs": [{"name": "a", "command": ["true"], "every": "3m"}]}`)
	_, err = m.Reload(ctx)
	require.EqualError(t, err, "vetoed")
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()

	m := NewManager("unused.json")
	sub := m.Subscribe(1)
	first, second := &Config{Timezone: "UTC"}, &Config{Timezone: "Europe/Berlin"}
	m.publish(first)
	m.publish(second)
	require.Same(t, second, <-sub)

	m.Unsubscribe(sub)
	_, ok := <-sub
	require.False(t, ok)
}
