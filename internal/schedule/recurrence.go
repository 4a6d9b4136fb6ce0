// Package schedule computes timezone-correct occurrence windows for
// weekly recurring classes.  Nothing here is persisted or performs IO;
// the functions are pure so sweeps can call them repeatedly with an
// injected "now".
package schedule

import (
    "fmt"
    "time"
)

// lookaheadDays bounds the candidate-date scan.  Reminder windows are
// always 24 hours or less, so three calendar days cover every case
// including timezone offsets on either side of the dateline.
const lookaheadDays = 3

// WeeklySlot describes when a class meets each week, expressed as a
// weekday plus local wall-clock times in the class's own timezone.
type WeeklySlot struct {
    Weekday  int            // ISO weekday, 1=Monday .. 7=Sunday
    Start    string         // local start time, "15:04" 24h format
    End      string         // local end time, "15:04" 24h format
    Location *time.Location // timezone the times are expressed in
}

// Lead classifies how far "now" is from the next occurrence.  The two
// buckets are deliberately non-overlapping bands rather than fixed
// points: reminders are driven by a periodic sweep, so each band must
// be wide enough that a sweep running every few minutes lands in it
// exactly once, and narrow enough that it cannot match two different
// weekly occurrences.
type Lead int

const (
    LeadNone Lead = iota // no reminder due now
    LeadHour             // occurrence starts within (0, 60] minutes
    LeadDay              // occurrence starts within [23h, 24h]
)

func (l Lead) String() string {
    switch l {
    case LeadHour:
        return "1-hour"
    case LeadDay:
        return "1-day"
    }
    return "none"
}

// isoWeekday converts Go's Sunday-based weekday to ISO numbering.
func isoWeekday(w time.Weekday) int {
    if w == time.Sunday {
        return 7
    }
    return int(w)
}

// parseClock splits an "HH:MM" string into hour and minute.
func parseClock(s string) (int, int, error) {
    var hh, mm int
    if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
        return 0, 0, fmt.Errorf("bad clock time %q: %w", s, err)
    }
    if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
        return 0, 0, fmt.Errorf("bad clock time %q", s)
    }
    return hh, mm, nil
}

// NextOccurrence returns the absolute start instant of the slot's next
// occurrence on or after now's calendar date, restricted to the closed
// term range [termStart, termEnd].  The boolean is false when no
// occurrence falls inside the lookahead window or the term.
//
// Candidate calendar dates are enumerated from today forward; each
// candidate's midday is converted into the slot's timezone before the
// weekday is read, so a source timezone that sits on the other side of
// midnight from the server cannot shift the match onto the wrong day.
func NextOccurrence(now time.Time, slot WeeklySlot, termStart, termEnd time.Time) (time.Time, bool) {
    if slot.Location == nil || slot.Weekday < 1 || slot.Weekday > 7 {
        return time.Time{}, false
    }
    hh, mm, err := parseClock(slot.Start)
    if err != nil {
        return time.Time{}, false
    }

    y, m, d := now.UTC().Date()
    for i := 0; i <= lookaheadDays; i++ {
        midday := time.Date(y, m, d+i, 12, 0, 0, 0, time.UTC).In(slot.Location)
        if isoWeekday(midday.Weekday()) != slot.Weekday {
            continue
        }
        cy, cm, cd := midday.Date()
        occDate := time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC)
        if occDate.Before(termStart) || occDate.After(termEnd) {
            continue
        }
        return time.Date(cy, cm, cd, hh, mm, 0, 0, slot.Location), true
    }
    return time.Time{}, false
}

// DueReminder classifies "now" against the slot's next occurrence.  It
// returns the lead bucket and the occurrence's start instant; the
// occurrence date formatted in the slot's timezone is the natural
// reference id for reminder dedup.  LeadNone means nothing is due.
func DueReminder(now time.Time, slot WeeklySlot, termStart, termEnd time.Time) (Lead, time.Time) {
    occ, ok := NextOccurrence(now, slot, termStart, termEnd)
    if !ok {
        return LeadNone, time.Time{}
    }
    mins := occ.Sub(now).Minutes()
    switch {
    case mins > 0 && mins <= 60:
        return LeadHour, occ
    case mins >= 23*60 && mins <= 24*60:
        return LeadDay, occ
    }
    return LeadNone, time.Time{}
}

// OccurrenceDate formats an occurrence instant as its calendar date in
// the slot's timezone ("2006-01-02").
func OccurrenceDate(occ time.Time, slot WeeklySlot) string {
    return occ.In(slot.Location).Format("2006-01-02")
}
