// Package besteffort runs side effects that must never fail the primary write.
//
// Scoring refreshes, notification cycles and follow-up sends are attempted
// through a Runner. Failures and panics are logged, optionally reported, and
// returned only as an Outcome value. Callers never receive an error from Go.
package besteffort

import (
	"context"
	"fmt"
	"sync"
	"time"

	"listing_leads_backend/platform/logger"

	"golang.org/x/sync/semaphore"
)

// Reporter receives side-effect failures, typically an error tracker.
type Reporter interface {
	Report(task string, err error)
}

// Outcome is the recorded result of one attempt.
type Outcome struct {
	Task     string
	Err      error
	Duration time.Duration
}

// OK reports whether the attempt succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Runner bounds the number of in-flight side effects and applies a timeout to each.
type Runner struct {
	sem      *semaphore.Weighted
	timeout  time.Duration
	log      *logger.Logger
	reporter Reporter
	wg       sync.WaitGroup
}

// NewRunner creates a runner allowing maxInFlight concurrent tasks.
// A nil reporter disables reporting.
func NewRunner(log *logger.Logger, maxInFlight int, timeout time.Duration, reporter Reporter) *Runner {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		sem:      semaphore.NewWeighted(int64(maxInFlight)),
		timeout:  timeout,
		log:      log,
		reporter: reporter,
	}
}

// Attempt runs fn synchronously under the runner timeout and never panics.
func (r *Runner) Attempt(ctx context.Context, task string, fn func(ctx context.Context) error) (out Outcome) {
	start := time.Now()
	out.Task = task

	taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			out.Err = fmt.Errorf("panic in %s: %v", task, rec)
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			r.fail(task, out.Err)
		}
	}()

	out.Err = fn(taskCtx)
	return out
}

// Go schedules fn in the background. The task is detached from ctx cancellation
// so a finished HTTP request does not abort its side effects.
func (r *Runner) Go(ctx context.Context, task string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(detached, 1); err != nil {
			r.fail(task, err)
			return
		}
		defer r.sem.Release(1)
		r.Attempt(detached, task, fn)
	}()
}

// Wait blocks until every task scheduled with Go has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) fail(task string, err error) {
	if r.log != nil {
		r.log.SideEffectFailed(task, err)
	}
	if r.reporter != nil {
		r.reporter.Report(task, err)
	}
}
