package enrollment

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/talebm/tutoring-enrollment/internal/model"
    "github.com/talebm/tutoring-enrollment/internal/schedule"
)

// ReminderSweeper sends session reminders for weekly recurring classes
// whose next occurrence falls inside a lead-time bucket.  Like the
// expiry sweeper it is stateless and idempotent: the dedup reference
// {classID}_{sessionDate} guarantees one reminder per recipient per
// occurrence no matter how often the sweep runs.
type ReminderSweeper struct {
    Classes    ClassStore
    Recipients RecipientStore
    Notifier   *Notifier
}

// ReminderResult summarizes one reminder sweep run.
type ReminderResult struct {
    Sent    int `json:"sent"`
    Skipped int `json:"skipped"`
}

// Run evaluates every active class of the active term against the two
// reminder buckets.  Classes with an unloadable timezone are logged as
// anomalies and skipped; a broken class definition must not stop
// reminders for the rest.
func (s *ReminderSweeper) Run(ctx context.Context, now time.Time) (ReminderResult, error) {
    var res ReminderResult

    term, err := s.Classes.ActiveTerm(ctx)
    if err != nil {
        return res, fmt.Errorf("load active term: %w", err)
    }
    classes, err := s.Classes.ActiveClasses(ctx, term.ID)
    if err != nil {
        return res, fmt.Errorf("load classes: %w", err)
    }

    for _, c := range classes {
        loc, err := time.LoadLocation(c.Timezone)
        if err != nil {
            log.Printf("reminders: class %d has bad timezone %q: %v", c.ID, c.Timezone, err)
            continue
        }
        slot := schedule.WeeklySlot{
            Weekday:  c.Weekday,
            Start:    c.StartTime,
            End:      c.EndTime,
            Location: loc,
        }
        lead, occ := schedule.DueReminder(now, slot, term.StartsOn, term.EndsOn)
        if lead == schedule.LeadNone {
            continue
        }
        notifType := model.NotifyClassReminder24h
        if lead == schedule.LeadHour {
            notifType = model.NotifyClassReminder1h
        }
        sessionDate := schedule.OccurrenceDate(occ, slot)

        rcpts, err := s.Recipients.ClassRecipients(ctx, c.ID)
        if err != nil {
            log.Printf("reminders: resolve recipients for class %d failed: %v", c.ID, err)
            continue
        }
        ref := fmt.Sprintf("%d_%s", c.ID, sessionDate)
        sent := s.Notifier.NotifyAll(ctx, rcpts, notifType, ref, notifType, map[string]string{
            "class_title":  c.Title,
            "session_date": sessionDate,
            "start_time":   c.StartTime,
        })
        res.Sent += sent
        res.Skipped += len(rcpts) - sent
    }
    return res, nil
}
