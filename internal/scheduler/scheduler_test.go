package scheduler_test

import (
    "context"
    "errors"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"

    "github.com/talebm/tutoring-enrollment/internal/scheduler"
)

func TestScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
    var runs int64
    s := scheduler.New(scheduler.Job{
        Name:     "counter",
        Interval: 20 * time.Millisecond,
        Run: func(context.Context) error {
            atomic.AddInt64(&runs, 1)
            return nil
        },
    })
    ctx, cancel := context.WithCancel(context.Background())
    s.Start(ctx)

    time.Sleep(70 * time.Millisecond)
    cancel()
    s.Wait()

    // One immediate run plus at least two ticks.
    assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(3))
}

func TestScheduler_SurvivesPanicsAndErrors(t *testing.T) {
    var panics, failures int64
    s := scheduler.New(
        scheduler.Job{
            Name:     "panicky",
            Interval: 15 * time.Millisecond,
            Run: func(context.Context) error {
                atomic.AddInt64(&panics, 1)
                panic("boom")
            },
        },
        scheduler.Job{
            Name:     "failing",
            Interval: 15 * time.Millisecond,
            Run: func(context.Context) error {
                atomic.AddInt64(&failures, 1)
                return errors.New("sweep failed")
            },
        },
    )
    ctx, cancel := context.WithCancel(context.Background())
    s.Start(ctx)

    time.Sleep(50 * time.Millisecond)
    cancel()
    s.Wait()

    // Both jobs kept being rescheduled despite failing every run.
    assert.GreaterOrEqual(t, atomic.LoadInt64(&panics), int64(2))
    assert.GreaterOrEqual(t, atomic.LoadInt64(&failures), int64(2))
}

func TestScheduler_ZeroIntervalJobSkipped(t *testing.T) {
    var runs int64
    s := scheduler.New(scheduler.Job{
        Name:     "disabled",
        Interval: 0,
        Run: func(context.Context) error {
            atomic.AddInt64(&runs, 1)
            return nil
        },
    })
    ctx, cancel := context.WithCancel(context.Background())
    s.Start(ctx)
    time.Sleep(30 * time.Millisecond)
    cancel()
    s.Wait()

    assert.Equal(t, int64(0), atomic.LoadInt64(&runs))
}
