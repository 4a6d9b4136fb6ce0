// Package scheduler runs the periodic background jobs (expiry and
// reminder sweeps) on fixed intervals.
package scheduler

import (
    "context"
    "log"
    "sync"
    "time"
)

// Job is one periodic task.  Run receives the scheduler's context and
// should return promptly when it is cancelled; errors are logged, not
// fatal, and the job runs again at the next tick.
type Job struct {
    Name     string
    Interval time.Duration
    Run      func(ctx context.Context) error
}

// Scheduler owns one goroutine per job.  Jobs run immediately on
// Start and then on every interval tick.  A panicking job is
// recovered and logged so a bug in one sweep cannot take the server
// down.
type Scheduler struct {
    jobs []Job
    wg   sync.WaitGroup
}

// New returns a Scheduler for the given jobs.  Jobs with a
// non-positive interval are skipped with a warning; that is how a
// sweep is disabled by configuration.
func New(jobs ...Job) *Scheduler {
    s := &Scheduler{}
    for _, j := range jobs {
        if j.Interval <= 0 {
            log.Printf("scheduler: job %q has no interval, skipping", j.Name)
            continue
        }
        s.jobs = append(s.jobs, j)
    }
    return s
}

// Start launches every job goroutine.  It returns immediately; cancel
// the context and call Wait for a clean shutdown.
func (s *Scheduler) Start(ctx context.Context) {
    for _, j := range s.jobs {
        s.wg.Add(1)
        go func(j Job) {
            defer s.wg.Done()
            s.runLoop(ctx, j)
        }(j)
    }
}

// Wait blocks until all job goroutines have exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) runLoop(ctx context.Context, j Job) {
    ticker := time.NewTicker(j.Interval)
    defer ticker.Stop()

    runOnce(ctx, j)
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            runOnce(ctx, j)
        }
    }
}

func runOnce(ctx context.Context, j Job) {
    defer func() {
        if r := recover(); r != nil {
            log.Printf("scheduler: job %q panicked: %v", j.Name, r)
        }
    }()
    start := time.Now()
    if err := j.Run(ctx); err != nil {
        log.Printf("scheduler: job %q failed after %s: %v", j.Name, time.Since(start).Round(time.Millisecond), err)
        return
    }
    log.Printf("scheduler: job %q completed in %s", j.Name, time.Since(start).Round(time.Millisecond))
}
