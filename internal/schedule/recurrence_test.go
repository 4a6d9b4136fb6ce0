package schedule_test

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/talebm/tutoring-enrollment/internal/schedule"
)

func vancouverSlot(t *testing.T) schedule.WeeklySlot {
    t.Helper()
    loc, err := time.LoadLocation("America/Vancouver")
    require.NoError(t, err)
    return schedule.WeeklySlot{
        Weekday:  3, // Wednesday
        Start:    "15:00",
        End:      "16:00",
        Location: loc,
    }
}

func termDates() (time.Time, time.Time) {
    start := time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
    end := time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC)
    return start, end
}

func TestDueReminder_DayBucket_Vancouver(t *testing.T) {
    // GIVEN: a class every Wed 15:00-16:00 America/Vancouver, term Jan 6 - Mar 24
    // WHEN: evaluated at 2025-01-07T23:05Z (Tue 15:05 Vancouver, ~23h55m before the Jan 8 session)
    // THEN: the 1-day bucket matches and the occurrence is Jan 8

    slot := vancouverSlot(t)
    termStart, termEnd := termDates()
    now := time.Date(2025, time.January, 7, 23, 5, 0, 0, time.UTC)

    lead, occ := schedule.DueReminder(now, slot, termStart, termEnd)

    assert.Equal(t, schedule.LeadDay, lead)
    assert.Equal(t, "2025-01-08", schedule.OccurrenceDate(occ, slot))
}

func TestDueReminder_HourBucket_Vancouver(t *testing.T) {
    // GIVEN: the same Wednesday class
    // WHEN: evaluated 1 minute before the Jan 8 session start (22:59Z = 14:59 Vancouver)
    // THEN: the 1-hour bucket matches

    slot := vancouverSlot(t)
    termStart, termEnd := termDates()
    now := time.Date(2025, time.January, 8, 22, 59, 0, 0, time.UTC)

    lead, occ := schedule.DueReminder(now, slot, termStart, termEnd)

    assert.Equal(t, schedule.LeadHour, lead)
    assert.Equal(t, "2025-01-08", schedule.OccurrenceDate(occ, slot))
}

func TestDueReminder_NothingDueBetweenBuckets(t *testing.T) {
    // 12 hours out falls between the two bands: no reminder.
    slot := vancouverSlot(t)
    termStart, termEnd := termDates()
    now := time.Date(2025, time.January, 8, 11, 0, 0, 0, time.UTC)

    lead, _ := schedule.DueReminder(now, slot, termStart, termEnd)

    assert.Equal(t, schedule.LeadNone, lead)
}

func TestDueReminder_SessionAlreadyStarted(t *testing.T) {
    // One minute after start: the occurrence is in the past, nothing is due.
    slot := vancouverSlot(t)
    termStart, termEnd := termDates()
    now := time.Date(2025, time.January, 8, 23, 1, 0, 0, time.UTC)

    lead, _ := schedule.DueReminder(now, slot, termStart, termEnd)

    assert.Equal(t, schedule.LeadNone, lead)
}

func TestNextOccurrence_OutsideTerm(t *testing.T) {
    // GIVEN: the term ended March 24 (a Monday)
    // WHEN: looking for the Wednesday after the term end
    // THEN: no occurrence is found

    slot := vancouverSlot(t)
    termStart, termEnd := termDates()
    now := time.Date(2025, time.March, 25, 12, 0, 0, 0, time.UTC)

    _, ok := schedule.NextOccurrence(now, slot, termStart, termEnd)

    assert.False(t, ok)
}

func TestNextOccurrence_BeforeTermStart(t *testing.T) {
    slot := vancouverSlot(t)
    termStart, termEnd := termDates()
    // Jan 1 2025 is a Wednesday but precedes the term.
    now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

    _, ok := schedule.NextOccurrence(now, slot, termStart, termEnd)

    assert.False(t, ok)
}

func TestNextOccurrence_WeekdayReadInSourceTimezone(t *testing.T) {
    // GIVEN: a class in Auckland (UTC+13 in January), meeting Wednesdays
    // WHEN: it is Tuesday 23:30 UTC, already Wednesday 12:30 in Auckland
    // THEN: the candidate's weekday must come from the source timezone,
    //       so "today" (UTC Tuesday) resolves to the Auckland Wednesday

    loc, err := time.LoadLocation("Pacific/Auckland")
    require.NoError(t, err)
    slot := schedule.WeeklySlot{Weekday: 3, Start: "18:00", End: "19:00", Location: loc}
    termStart := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
    termEnd := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

    // 2025-01-07 is a Tuesday in UTC; midday UTC that day is already
    // Wednesday morning in Auckland.
    now := time.Date(2025, time.January, 7, 23, 30, 0, 0, time.UTC)

    occ, ok := schedule.NextOccurrence(now, slot, termStart, termEnd)

    require.True(t, ok)
    assert.Equal(t, "2025-01-08", schedule.OccurrenceDate(occ, slot))
    // 18:00 Wednesday Auckland time is 05:00 UTC the same calendar day.
    assert.Equal(t, time.Date(2025, time.January, 8, 5, 0, 0, 0, time.UTC), occ.UTC())
}

func TestDueReminder_DayBucketEdges(t *testing.T) {
    slot := vancouverSlot(t)
    termStart, termEnd := termDates()
    // Session: Jan 8 15:00 Vancouver = Jan 8 23:00 UTC.
    start := time.Date(2025, time.January, 8, 23, 0, 0, 0, time.UTC)

    cases := []struct {
        name string
        now  time.Time
        want schedule.Lead
    }{
        {"exactly 24h out", start.Add(-24 * time.Hour), schedule.LeadDay},
        {"exactly 23h out", start.Add(-23 * time.Hour), schedule.LeadDay},
        {"just under 23h out", start.Add(-23*time.Hour + time.Minute), schedule.LeadNone},
        {"exactly 60m out", start.Add(-60 * time.Minute), schedule.LeadHour},
        {"61m out", start.Add(-61 * time.Minute), schedule.LeadNone},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            lead, _ := schedule.DueReminder(tc.now, slot, termStart, termEnd)
            assert.Equal(t, tc.want, lead)
        })
    }
}
