package scheduler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"schedkit/internal/eventbus"
	"schedkit/internal/producer"
	"schedkit/internal/task/engine"
	logx "schedkit/pkg/logx"
)

// errSinks routes handled errors to the test that owns the job id.
var errSinks sync.Map // job id -> chan error

func TestMain(m *testing.M) {
	SetErrorHandler(func(err error) {
		var je *JobError
		if !errors.As(err, &je) {
			return
		}
		if ch, ok := errSinks.Load(je.JobID); ok {
			select {
			case ch.(chan error) <- err:
			default:
			}
		}
	})
	os.Exit(m.Run())
}

func errSink(t *testing.T, id any) <-chan error {
	t.Helper()
	ch := make(chan error, 16)
	errSinks.Store(id, ch)
	t.Cleanup(func() { errSinks.Delete(id) })
	return ch
}

func started(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s := New(opts...)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, s.Stop(ctx))
	})
	return s
}

type producerFunc func(after time.Time) (time.Time, error)

func (f producerFunc) Next(after time.Time) (time.Time, error) { return f(after) }

func counter(n *atomic.Int32) SyncExecutor {
	return func(context.Context) error {
		n.Add(1)
		return nil
	}
}

func TestOneTimeJobRunsOnce(t *testing.T) {
	t.Parallel()
	s := started(t)
	var runs atomic.Int32
	j, err := s.At(time.Now().Add(50*time.Millisecond), counter(&runs))
	require.NoError(t, err)

	var finished atomic.Int32
	j.OnFinished(func(Job) { finished.Add(1) })

	require.Eventually(t, func() bool { return j.Status() == StatusFinished }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return runs.Load() != 1 }, 50*time.Millisecond, 5*time.Millisecond)
	require.EqualValues(t, 1, finished.Load())

	_, ok := j.NextRun()
	require.False(t, ok)
	_, ok = j.LastRun()
	require.True(t, ok)
	_, ok = s.Job(j.ID())
	require.False(t, ok)

	require.ErrorIs(t, j.Cancel(), ErrJobAlreadyFinished)
}

func TestCountdownResetPostponesRun(t *testing.T) {
	t.Parallel()
	s := started(t)
	var runs atomic.Int32
	j, err := s.Countdown(200*time.Millisecond, counter(&runs))
	require.NoError(t, err)
	require.Equal(t, StatusRunning, j.Status())

	for range 5 {
		time.Sleep(100 * time.Millisecond)
		require.NoError(t, j.Reset())
	}
	require.Zero(t, runs.Load())
	lastReset := time.Now()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, time.Since(lastReset), 190*time.Millisecond)
	require.Equal(t, StatusPaused, j.Status())
	require.Never(t, func() bool { return runs.Load() > 1 }, 300*time.Millisecond, 20*time.Millisecond)
}

func TestCountdownStartsPausedAndStops(t *testing.T) {
	t.Parallel()
	s := New()
	j, err := NewCountdownJob(time.Hour, counter(new(atomic.Int32)))
	require.NoError(t, err)
	require.ErrorIs(t, j.Reset(), ErrJobNotLinked)

	require.NoError(t, s.Add(j))
	require.Equal(t, StatusPaused, j.Status())

	require.NoError(t, j.Reset())
	next, ok := j.NextRun()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Hour), next, time.Second)

	require.ErrorIs(t, j.SetCountdown(0), ErrInvalidCountdown)
	require.NoError(t, j.SetCountdown(time.Minute))
	next2, _ := j.NextRun()
	require.Equal(t, next, next2)

	require.NoError(t, j.Stop())
	require.Equal(t, StatusPaused, j.Status())
	require.NoError(t, j.Cancel())
	require.ErrorIs(t, j.SetCountdown(time.Second), ErrJobAlreadyFinished)
}

func TestCountdownCanRearmItself(t *testing.T) {
	t.Parallel()
	s := started(t)
	var runs atomic.Int32
	var j *CountdownJob
	var mu sync.Mutex
	exec := SyncExecutor(func(context.Context) error {
		if runs.Add(1) == 1 {
			mu.Lock()
			defer mu.Unlock()
			return j.Reset()
		}
		return nil
	})
	mu.Lock()
	j, _ = NewCountdownJob(20*time.Millisecond, exec)
	mu.Unlock()
	require.NoError(t, s.Add(j))
	require.NoError(t, j.Reset())

	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return j.Status() == StatusPaused }, time.Second, 5*time.Millisecond)
}

func TestEqualNextRunsFireInInsertionOrder(t *testing.T) {
	t.Parallel()
	s := started(t)
	at := time.Now().Add(50 * time.Millisecond)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"c", "a", "b"} {
		_, err := s.At(at, SyncExecutor(func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}), WithID(name))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)
	if diff := cmp.Diff([]string{"c", "a", "b"}, order); diff != "" {
		t.Fatalf("fire order mismatch (-want +got):\n%s", diff)
	}
}

func TestJobsSortedByNextRun(t *testing.T) {
	t.Parallel()
	s := New()
	now := time.Now()
	exec := counter(new(atomic.Int32))

	_, err := s.At(now.Add(3*time.Hour), exec, WithID("late"))
	require.NoError(t, err)
	_, err = s.At(now.Add(time.Hour), exec, WithID("early"))
	require.NoError(t, err)
	cd, err := NewCountdownJob(time.Minute, exec, WithID("paused"))
	require.NoError(t, err)
	require.NoError(t, s.Add(cd))
	_, err = s.At(now.Add(2*time.Hour), exec, WithID("middle"))
	require.NoError(t, err)

	var ids []any
	for _, j := range s.Jobs() {
		ids = append(ids, j.ID())
	}
	if diff := cmp.Diff([]any{"early", "middle", "late", "paused"}, ids); diff != "" {
		t.Fatalf("jobs order mismatch (-want +got):\n%s", diff)
	}

	snap := s.Snapshot()
	require.Len(t, snap, 4)
	require.Equal(t, "one_time", snap[0].Kind)
	require.Equal(t, StatusPaused, snap[3].Status)

	require.NoError(t, s.Remove("middle"))
	require.Len(t, s.Jobs(), 3)
	require.ErrorIs(t, s.Remove("middle"), ErrJobNotLinked)
}

func TestSelfCancelFromExecutor(t *testing.T) {
	t.Parallel()
	s := New()
	p, err := producer.NewInterval(time.Time{}, 20*time.Millisecond)
	require.NoError(t, err)

	var runs atomic.Int32
	var cancelErr atomic.Value
	j, err := NewDateTimeJob(p, SyncExecutor(func(context.Context) error { return nil }))
	require.NoError(t, err)
	j.exec = SyncExecutor(func(context.Context) error {
		runs.Add(1)
		if err := j.Cancel(); err != nil {
			cancelErr.Store(err)
		}
		return nil
	})
	require.NoError(t, s.Add(j))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return j.Status() == StatusFinished }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return runs.Load() != 1 }, 100*time.Millisecond, 10*time.Millisecond)
	require.Nil(t, cancelErr.Load())
	require.Empty(t, s.Jobs())
}

func TestPauseAndResume(t *testing.T) {
	t.Parallel()
	s := New()
	p, err := producer.NewInterval(time.Time{}, time.Hour)
	require.NoError(t, err)
	j, err := s.Every(p, counter(new(atomic.Int32)))
	require.NoError(t, err)

	var updates atomic.Int32
	unregister := j.OnUpdate(func(Job) { updates.Add(1) })

	first, ok := j.NextRun()
	require.True(t, ok)
	require.Equal(t, StatusRunning, j.Status())

	require.NoError(t, j.Pause())
	require.Equal(t, StatusPaused, j.Status())
	_, ok = j.NextRun()
	require.False(t, ok)

	require.NoError(t, j.Resume())
	again, ok := j.NextRun()
	require.True(t, ok)
	require.True(t, again.Equal(first))
	require.EqualValues(t, 2, updates.Load())

	unregister()
	require.NoError(t, j.Pause())
	require.EqualValues(t, 2, updates.Load())

	require.NoError(t, j.Cancel())
	require.ErrorIs(t, j.Pause(), ErrJobAlreadyFinished)
	require.ErrorIs(t, j.Resume(), ErrJobAlreadyFinished)
}

func TestProducerErrorPausesJob(t *testing.T) {
	t.Parallel()
	s := started(t)
	boom := errors.New("no more occurrences")
	var calls atomic.Int32
	p := producerFunc(func(after time.Time) (time.Time, error) {
		if calls.Add(1) == 1 {
			return after.Add(20 * time.Millisecond), nil
		}
		return time.Time{}, boom
	})
	errs := errSink(t, "fails-later")
	var runs atomic.Int32
	j, err := s.Every(p, counter(&runs), WithID("fails-later"))
	require.NoError(t, err)

	select {
	case err := <-errs:
		require.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("producer error was not handled")
	}
	require.Eventually(t, func() bool { return j.Status() == StatusPaused }, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 1, runs.Load())
	_, ok := s.Job("fails-later")
	require.True(t, ok)
}

func TestAddWithoutFirstRunKeepsJobPaused(t *testing.T) {
	t.Parallel()
	never, err := producer.NewInterval(time.Time{}, time.Hour,
		producer.WithFilter(producer.FilterFunc(func(time.Time) bool { return false })))
	require.NoError(t, err)
	failing := producerFunc(func(time.Time) (time.Time, error) {
		return time.Time{}, producer.ErrInfiniteLoopDetected
	})

	tests := []struct {
		name string
		p    producer.Producer
	}{
		{name: "filter never matches", p: never},
		{name: "producer fails", p: failing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New()
			id := "no-first-run/" + tt.name
			errs := errSink(t, id)
			j, err := NewDateTimeJob(tt.p, counter(new(atomic.Int32)), WithID(id))
			require.NoError(t, err)

			err = s.Add(j)
			require.ErrorIs(t, err, ErrNoNextRun)
			require.ErrorIs(t, err, producer.ErrInfiniteLoopDetected)
			select {
			case err := <-errs:
				require.ErrorIs(t, err, producer.ErrInfiniteLoopDetected)
			case <-time.After(time.Second):
				t.Fatal("first-run error was not handled")
			}

			require.Equal(t, StatusPaused, j.Status())
			_, ok := j.NextRun()
			require.False(t, ok)
			linked, ok := s.Job(id)
			require.True(t, ok)
			require.Same(t, j, linked.(*DateTimeJob))
			require.NoError(t, s.Add(j))
		})
	}

	t.Run("resume after recovery", func(t *testing.T) {
		t.Parallel()
		var ok atomic.Bool
		p := producerFunc(func(after time.Time) (time.Time, error) {
			if !ok.Load() {
				return time.Time{}, producer.ErrInfiniteLoopDetected
			}
			return after.Add(time.Hour), nil
		})
		s := New()
		j, err := s.Every(p, counter(new(atomic.Int32)), WithID("resumes"))
		require.ErrorIs(t, err, ErrNoNextRun)
		require.NotNil(t, j)

		require.ErrorIs(t, j.Resume(), ErrNoNextRun)
		require.Equal(t, StatusPaused, j.Status())

		ok.Store(true)
		require.NoError(t, j.Resume())
		require.Equal(t, StatusRunning, j.Status())
		_, armed := j.NextRun()
		require.True(t, armed)
	})
}

func TestExecutorFailuresReachHandler(t *testing.T) {
	t.Parallel()
	s := started(t)
	errs := errSink(t, "panics")
	p, err := producer.NewInterval(time.Time{}, 30*time.Millisecond)
	require.NoError(t, err)
	j, err := s.Every(p, SyncExecutor(func(context.Context) error { panic("bad callback") }), WithID("panics"))
	require.NoError(t, err)

	for range 2 {
		select {
		case err := <-errs:
			require.ErrorContains(t, err, "bad callback")
		case <-time.After(time.Second):
			t.Fatal("executor panic was not handled")
		}
	}
	require.Equal(t, StatusRunning, j.Status())
}

func TestAsyncExecutor(t *testing.T) {
	t.Parallel()
	s := started(t)
	mgr := engine.NewParallel()
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })
	errs := errSink(t, "async-job")

	fail := errors.New("exit status 1")
	_, err := s.At(time.Now().Add(10*time.Millisecond), &AsyncExecutor{
		Manager: mgr,
		Name:    "async-job",
		Run:     func(context.Context) error { return fail },
	}, WithID("async-job"))
	require.NoError(t, err)

	select {
	case err := <-errs:
		require.ErrorIs(t, err, fail)
	case <-time.After(time.Second):
		t.Fatal("async failure was not handled")
	}
	require.Eventually(t, func() bool { return mgr.Snapshot().Failed == 1 }, time.Second, 5*time.Millisecond)
}

func TestAsyncExecutorIgnoresSkips(t *testing.T) {
	t.Parallel()
	mgr, err := engine.NewLimitingParallel(1, engine.ParallelSkip)
	require.NoError(t, err)
	gate := make(chan struct{})
	defer close(gate)
	exec := &AsyncExecutor{Manager: mgr, Name: "busy", Run: func(context.Context) error {
		<-gate
		return nil
	}}
	require.NoError(t, exec.Execute(context.Background()))
	require.NoError(t, exec.Execute(context.Background()))
	require.EqualValues(t, 1, mgr.Snapshot().Skipped)
}

func TestAddErrors(t *testing.T) {
	t.Parallel()
	s := New()
	exec := counter(new(atomic.Int32))

	_, err := s.At(time.Now().Add(-time.Second), exec, WithID("past"))
	require.ErrorIs(t, err, ErrScheduledRunInThePast)
	_, ok := s.Job("past")
	require.False(t, ok)

	j, err := s.At(time.Now().Add(time.Hour), exec, WithID("dup"))
	require.NoError(t, err)
	require.NoError(t, s.Add(j))
	require.ErrorIs(t, New().Add(j), ErrAlreadyLinked)

	_, err = s.At(time.Now().Add(time.Hour), exec, WithID("dup"))
	require.ErrorIs(t, err, ErrDuplicateJobID)

	other, err := NewOneTimeJob(time.Now().Add(time.Hour), exec)
	require.NoError(t, err)
	require.ErrorIs(t, other.Cancel(), ErrJobNotLinked)
	_, isString := other.ID().(string)
	require.True(t, isString)

	_, err = NewOneTimeJob(time.Now(), exec, WithID([]int{1}))
	require.ErrorIs(t, err, ErrInvalidJobID)
	_, err = NewDateTimeJob(nil, exec)
	require.ErrorIs(t, err, ErrNoProducer)

	require.NoError(t, j.Cancel())
	require.ErrorIs(t, s.Add(j), ErrJobAlreadyFinished)
}

func TestCallbackPanicIsHandled(t *testing.T) {
	t.Parallel()
	s := New()
	errs := errSink(t, "cb")
	j, err := NewCountdownJob(time.Minute, counter(new(atomic.Int32)), WithID("cb"))
	require.NoError(t, err)
	j.OnUpdate(func(Job) { panic("callback") })
	require.NoError(t, s.Add(j))

	select {
	case err := <-errs:
		require.ErrorContains(t, err, "callback")
	case <-time.After(time.Second):
		t.Fatal("callback panic was not handled")
	}
	require.Equal(t, StatusPaused, j.Status())
}

func TestEventsPublished(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16, "job.")
	defer unsub()

	s := started(t, WithBus(bus))
	_, err := s.At(time.Now().Add(10*time.Millisecond), counter(new(atomic.Int32)), WithID("ev"))
	require.NoError(t, err)

	var types []string
	timeout := time.After(time.Second)
	for len(types) < 3 {
		select {
		case e := <-events:
			types = append(types, e.Type)
		case <-timeout:
			t.Fatalf("got events %v", types)
		}
	}
	if diff := cmp.Diff([]string{EventJobUpdated, EventJobFinished, EventJobFired}, types); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestLogErrorHandlerThrottles(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := LogErrorHandler(logx.NewWriter(&buf, "info"))
	for range 20 {
		h(&JobError{JobID: "x", Err: errors.New("boom")})
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	require.Contains(t, lines[0], `"job":"x"`)
}
