package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	logx "schedkit/pkg/logx"
)

var (
	handlerMu    sync.RWMutex
	errorHandler func(error) // nil selects defaultHandler

	defaultHandler = sync.OnceValue(func() func(error) {
		return LogErrorHandler(logx.NewConsole("info"))
	})
)

// SetErrorHandler replaces the process-wide handler for errors raised by
// executors and producers. A nil fn restores the default console logger.
func SetErrorHandler(fn func(error)) {
	handlerMu.Lock()
	errorHandler = fn
	handlerMu.Unlock()
}

// HandleError passes err to the current handler. A panicking handler is
// swallowed.
func HandleError(err error) {
	if err == nil {
		return
	}
	handlerMu.RLock()
	fn := errorHandler
	handlerMu.RUnlock()
	if fn == nil {
		fn = defaultHandler()
	}
	defer func() { _ = recover() }()
	fn(err)
}

// LogErrorHandler logs errors at error level. After the first five it logs at
// most one line per 10s and reports how many were suppressed.
func LogErrorHandler(log logx.Logger) func(error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "scheduler"))
	s := &rate.Sometimes{First: 5, Interval: 10 * time.Second}
	var suppressed atomic.Uint64
	return func(err error) {
		logged := false
		s.Do(func() {
			logged = true
			fields := []logx.Field{logx.Err(err)}
			var je *JobError
			if errors.As(err, &je) {
				fields = append(fields, logx.String("job", fmt.Sprint(je.JobID)))
			}
			if n := suppressed.Swap(0); n > 0 {
				fields = append(fields, logx.Uint64("suppressed", n))
			}
			log.Error("job error", fields...)
		})
		if !logged {
			suppressed.Add(1)
		}
	}
}
