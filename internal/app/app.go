package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"schedkit/internal/config"
	"schedkit/internal/eventbus"
	"schedkit/internal/holiday"
	"schedkit/internal/runtime/supervisor"
	"schedkit/internal/task/engine"
	"schedkit/internal/task/scheduler"
	logx "schedkit/pkg/logx"
)

// App runs the configured jobs and follows config reloads.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	cal  holiday.Store

	tm    engine.TaskManager
	retry engine.RetryPolicy
	sched *scheduler.Scheduler

	// now is the clock used for builders. Tests replace it.
	now func() time.Time

	mu   sync.Mutex
	cfg  *config.Config
	jobs map[string]scheduler.Job
}

// New loads cfgPath and wires logging, the holiday calendar, the task
// manager and the scheduler. Nothing runs until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logConfig(cfg))
	scheduler.SetErrorHandler(scheduler.LogErrorHandler(log))
	log = log.With(logx.String("comp", "app"))
	bus := eventbus.New()

	var cal holiday.Store
	if hc, enabled, err := mapHolidayConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		cal, err = holiday.Open(ctx, hc, log.With(logx.String("comp", "holiday")))
		if err != nil {
			return nil, fmt.Errorf("holidays: %w", err)
		}
		log.Info("holiday calendar enabled", logx.String("driver", hc.Driver))
	}

	tm, err := newTaskManager(cfg, log, bus)
	if err != nil {
		closeCalendar(cal)
		return nil, err
	}
	retry, err := retryPolicy(cfg.TaskManager.Retry)
	if err != nil {
		closeCalendar(cal)
		return nil, err
	}

	return &App{
		cfgm:  cfgm,
		log:   log,
		logs:  logs,
		bus:   bus,
		cal:   cal,
		tm:    tm,
		retry: retry,
		sched: scheduler.New(scheduler.WithLogger(log), scheduler.WithBus(bus)),
		now:   time.Now,
		cfg:   cfg,
		jobs:  map[string]scheduler.Job{},
	}, nil
}

func closeCalendar(cal holiday.Store) {
	if cal != nil {
		_ = cal.Close()
	}
}

func logConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Alert: logx.AlertConfig{
			Enabled:    lc.Alert.Enabled,
			Path:       lc.Alert.Path,
			MinLevel:   lc.Alert.MinLevel,
			RatePerSec: lc.Alert.RatePerSec,
		},
	}
}

func newTaskManager(cfg *config.Config, log logx.Logger, bus eventbus.Bus) (engine.TaskManager, error) {
	tc := cfg.TaskManager
	opts := []engine.Option{
		engine.WithLogger(log.With(logx.String("comp", "taskmanager"))),
		engine.WithBus(bus),
	}
	if tc.HistorySize > 0 {
		opts = append(opts, engine.WithHistory(tc.HistorySize))
	}
	tm, err := engine.New(engine.Config{Kind: tc.Kind, Limit: tc.Limit, Policy: tc.Policy}, opts...)
	if err != nil {
		return nil, fmt.Errorf("task_manager: %w", err)
	}
	return tm, nil
}

// Scheduler exposes the running scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// TaskManager exposes the task manager running job commands.
func (a *App) TaskManager() engine.TaskManager { return a.tm }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error of a supervised goroutine.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start links the configured jobs, starts the scheduler and follows
// config reloads.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()
	jobs, err := a.build(cfg)
	if err != nil {
		return err
	}
	a.mu.Lock()
	for _, jc := range cfg.Jobs {
		if j, ok := jobs[jc.Name]; ok {
			a.linkLocked(jc.Name, j)
		}
	}
	n := len(a.jobs)
	a.mu.Unlock()

	a.sched.Start(a.sup.Context())

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := a.build(cfg)
		return err
	})
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.Go("events.log", a.logEvents)
	a.startWatchdog()

	a.log.Info("app started", logx.Int("jobs", n), logx.String("config", a.cfgm.Path()))
	notifyReady(a.log)
	return nil
}

// build creates a job for every enabled definition in cfg without linking
// any of them.
func (a *App) build(cfg *config.Config) (map[string]scheduler.Job, error) {
	b, err := NewBuilder(cfg, a.cal, a.now())
	if err != nil {
		return nil, err
	}
	out := make(map[string]scheduler.Job, len(cfg.Jobs))
	var errs []error
	for _, jc := range cfg.Jobs {
		if jc.Disabled {
			continue
		}
		exec, err := executor(jc, a.tm, a.retry, a.log.With(logx.String("comp", "command")))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		j, err := b.Job(jc, exec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[jc.Name] = j
	}
	return out, errors.Join(errs...)
}

// linkLocked adds j to the scheduler. A one-time job whose instant has
// passed is logged and dropped. A job without a first run stays linked and
// paused so a reload or Resume can recover it.
func (a *App) linkLocked(name string, j scheduler.Job) {
	if err := a.sched.Add(j); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrNoNextRun):
			a.log.Warn("job paused: no next run", logx.String("job", name), logx.Err(err))
			a.jobs[name] = j
		case errors.Is(err, scheduler.ErrScheduledRunInThePast):
			a.log.Warn("job skipped: run time has passed", logx.String("job", name))
		default:
			a.log.Error("job not scheduled", logx.String("job", name), logx.Err(err))
		}
		return
	}
	if cd, ok := j.(*scheduler.CountdownJob); ok {
		if err := cd.Reset(); err != nil {
			a.log.Error("countdown not armed", logx.String("job", name), logx.Err(err))
		}
	}
	a.jobs[name] = j
	next, _ := j.NextRun()
	a.log.Debug("job scheduled", logx.String("job", name), logx.Time("next", next))
}

func (a *App) unlinkLocked(name string) {
	j, ok := a.jobs[name]
	if !ok {
		return
	}
	delete(a.jobs, name)
	if err := j.Cancel(); err != nil && !errors.Is(err, scheduler.ErrJobAlreadyFinished) {
		a.log.Warn("job cancel failed", logx.String("job", name), logx.Err(err))
	}
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					drained = true
				}
			}
			notifyReloading(a.log)
			a.Apply(cfg)
			notifyReady(a.log)
		}
	}
}

// Apply reconciles the running app with cfg. Jobs that changed are
// replaced, removed jobs are cancelled and new jobs are added. Changes to
// the holiday calendar or the task manager need a restart.
func (a *App) Apply(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sections, attrs, changes := config.SummarizeConfigChange(a.cfg, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		a.cfg = cfg
		return
	}

	rebuildAll := false
	for _, s := range sections {
		switch s {
		case "holidays", "task_manager":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		case "timezone", "location":
			rebuildAll = true
		case "logging":
			a.logs.Apply(logConfig(cfg))
		}
	}

	jobs, err := a.build(cfg)
	if err != nil {
		// The validator already ran this; a failure here means the clock
		// moved into a new DST year. Keep what runs.
		a.log.Error("config reload failed; keeping previous jobs", logx.Err(err))
		return
	}

	replace := append(append([]string(nil), changes.Changed...), changes.Removed...)
	add := append([]string(nil), changes.Added...)
	if rebuildAll {
		replace, add = replace[:0], add[:0]
		for name := range a.jobs {
			replace = append(replace, name)
		}
		for name := range jobs {
			add = append(add, name)
		}
	} else {
		add = append(add, changes.Changed...)
	}
	for _, name := range replace {
		a.unlinkLocked(name)
	}
	for _, name := range add {
		if j, ok := jobs[name]; ok {
			a.linkLocked(name, j)
		}
	}
	a.cfg = cfg

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Jobs lists the names of the linked jobs.
func (a *App) Jobs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.jobs))
	for name := range a.jobs {
		out = append(out, name)
	}
	return out
}

func (a *App) logEvents(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(128, "job.", "task.")
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
		}
	}
}

// Stop shuts everything down. Each step is bounded so one stuck component
// cannot hold up the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	notifyStopping(a.log)
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	a.step(ctx, "scheduler", 2*time.Second, a.sched.Stop)
	a.step(ctx, "taskmanager", 5*time.Second, a.tm.Close)
	a.step(ctx, "holidays", time.Second, func(context.Context) error {
		if a.cal != nil {
			return a.cal.Close()
		}
		return nil
	})
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped: deadline reached", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
