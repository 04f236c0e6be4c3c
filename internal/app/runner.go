package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"schedkit/internal/config"
	"schedkit/internal/task/engine"
	"schedkit/internal/task/scheduler"
	logx "schedkit/pkg/logx"
)

const outputTail = 512

// command runs one job's argv. Output is captured and only the tail is
// kept for logs and errors.
type command struct {
	name string
	argv []string
	log  logx.Logger
}

func (c command) run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	var out tailBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	took := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return engine.NoRetry(fmt.Errorf("%s: %w", c.argv[0], err))
		}
		if tail := out.String(); tail != "" {
			err = fmt.Errorf("%w: %s", err, tail)
		}
		return err
	}
	c.log.Debug("command finished", logx.String("job", c.name), logx.Duration("took", took), logx.String("output", out.String()))
	return nil
}

// tailBuffer keeps the last outputTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf.Write(p)
	if over := b.buf.Len() - outputTail; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

func (b *tailBuffer) String() string { return strings.TrimSpace(b.buf.String()) }

// retryPolicy maps task_manager.retry.
func retryPolicy(rc config.RetryConfig) (engine.RetryPolicy, error) {
	base, err := config.ParseDurationField("task_manager.retry.base", rc.Base)
	if err != nil {
		return engine.RetryPolicy{}, err
	}
	maxDelay, err := config.ParseDurationField("task_manager.retry.max_delay", rc.MaxDelay)
	if err != nil {
		return engine.RetryPolicy{}, err
	}
	return engine.RetryPolicy{Max: rc.Max, Base: base, MaxDelay: maxDelay}, nil
}

// executor submits jc's command to tm on every run.
func executor(jc config.JobConfig, tm engine.TaskManager, retry engine.RetryPolicy, log logx.Logger) (scheduler.Executor, error) {
	timeout, err := config.ParseDurationField("jobs["+jc.Name+"].timeout", jc.Timeout)
	if err != nil {
		return nil, err
	}
	if len(jc.Command) == 0 {
		return nil, fmt.Errorf("jobs[%s].command: required", jc.Name)
	}
	c := command{name: jc.Name, argv: append([]string(nil), jc.Command...), log: log}
	return &scheduler.AsyncExecutor{
		Manager: tm,
		Name:    jc.Name,
		Key:     jc.Name,
		Timeout: timeout,
		Run:     engine.WithRetry(c.run, retry),
	}, nil
}
