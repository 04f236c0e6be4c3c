// Package scheduler fires jobs at instants computed by producers.
//
// A Scheduler keeps the running jobs ordered by next run and a single timer
// armed for the earliest one. When the timer expires the loop pops every due
// job, runs its Executor outside the lock, and asks the job for its next run:
//   - OneTimeJob finishes after it fired
//   - CountdownJob pauses until Reset arms it again
//   - DateTimeJob asks its producer for the next instant
//
// Executor errors and panics never reach the loop. They go to the
// process-wide handler installed with SetErrorHandler.
package scheduler
