package enrollment_test

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
    "github.com/talebm/tutoring-enrollment/internal/model"
)

// enrollActive seats the student in the class and confirms the batch so
// ClassRecipients picks them up.
func enrollActive(t *testing.T, b *memBackend, sender *fakeSender, studentID, classID uint64) {
    t.Helper()
    ledger, _, _ := newLedger(b, sender)
    res, err := ledger.Reserve(context.Background(), studentID, []uint64{classID}, model.PaymentEtransfer)
    require.NoError(t, err)
    _, err = ledger.ConfirmBatch(context.Background(), studentID, res.BatchToken)
    require.NoError(t, err)
}

func TestReminderSweeper_DayBeforeNoticeToEnrolledRecipients(t *testing.T) {
    // GIVEN: a Wednesday 15:00 Vancouver class with two enrolled
    //        students, one of whom has a guardian
    // WHEN: the sweep runs the day before the Jan 8 session
    // THEN: all three recipients get the 24h reminder, once

    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 1)
    b.addStudent(2, "Eli", 0)
    sender := &fakeSender{}
    enrollActive(t, b, sender, 1, 10)
    enrollActive(t, b, sender, 2, 10)
    sentBefore := sender.count()

    sweeper := &enrollment.ReminderSweeper{
        Classes:    b,
        Recipients: b,
        Notifier:   enrollment.NewNotifier(b, sender),
    }
    // Jan 8 15:00 Vancouver is 23:00 UTC; 23:05 the day before is
    // 23h55m out, inside the day bucket.
    now := time.Date(2025, time.January, 7, 23, 5, 0, 0, time.UTC)
    out, err := sweeper.Run(context.Background(), now)

    require.NoError(t, err)
    assert.Equal(t, 3, out.Sent)
    assert.Equal(t, 0, out.Skipped)
    require.Equal(t, sentBefore+3, sender.count())
    for _, m := range sender.sent[sentBefore:] {
        assert.Equal(t, model.NotifyClassReminder24h, m.template)
        assert.Equal(t, "2025-01-08", m.params["session_date"])
        assert.Equal(t, "Math 9", m.params["class_title"])
    }
}

func TestReminderSweeper_RerunSkipsAlreadyNotified(t *testing.T) {
    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 0)
    sender := &fakeSender{}
    enrollActive(t, b, sender, 1, 10)

    sweeper := &enrollment.ReminderSweeper{
        Classes:    b,
        Recipients: b,
        Notifier:   enrollment.NewNotifier(b, sender),
    }
    ctx := context.Background()
    now := time.Date(2025, time.January, 7, 23, 5, 0, 0, time.UTC)

    first, err := sweeper.Run(ctx, now)
    require.NoError(t, err)
    require.Equal(t, 1, first.Sent)

    // Ten minutes later the occurrence is still in the bucket, but the
    // dedup ledger already holds the tuple.
    second, err := sweeper.Run(ctx, now.Add(10*time.Minute))

    require.NoError(t, err)
    assert.Equal(t, 0, second.Sent)
    assert.Equal(t, 1, second.Skipped)
}

func TestReminderSweeper_HourBucketUsesOwnTuple(t *testing.T) {
    // The 1h reminder is a different notification type, so it goes out
    // even after the 24h reminder for the same session.
    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 0)
    sender := &fakeSender{}
    enrollActive(t, b, sender, 1, 10)

    sweeper := &enrollment.ReminderSweeper{
        Classes:    b,
        Recipients: b,
        Notifier:   enrollment.NewNotifier(b, sender),
    }
    ctx := context.Background()

    dayBefore := time.Date(2025, time.January, 7, 23, 5, 0, 0, time.UTC)
    out, err := sweeper.Run(ctx, dayBefore)
    require.NoError(t, err)
    require.Equal(t, 1, out.Sent)

    hourBefore := time.Date(2025, time.January, 8, 22, 10, 0, 0, time.UTC)
    out, err = sweeper.Run(ctx, hourBefore)

    require.NoError(t, err)
    assert.Equal(t, 1, out.Sent)
    last := sender.sent[len(sender.sent)-1]
    assert.Equal(t, model.NotifyClassReminder1h, last.template)
}

func TestReminderSweeper_NothingDueOutsideBuckets(t *testing.T) {
    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 0)
    sender := &fakeSender{}
    enrollActive(t, b, sender, 1, 10)
    sentBefore := sender.count()

    sweeper := &enrollment.ReminderSweeper{
        Classes:    b,
        Recipients: b,
        Notifier:   enrollment.NewNotifier(b, sender),
    }
    // Twelve hours out: between the day bucket and the hour bucket.
    now := time.Date(2025, time.January, 8, 11, 0, 0, 0, time.UTC)
    out, err := sweeper.Run(context.Background(), now)

    require.NoError(t, err)
    assert.Equal(t, 0, out.Sent)
    assert.Equal(t, sentBefore, sender.count())
}

func TestReminderSweeper_BadTimezoneSkipsClassOnly(t *testing.T) {
    // A class with a broken timezone must not stop reminders for the
    // healthy ones.
    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 0)
    enrollActive(t, b, &fakeSender{}, 1, 10)

    broken := b.classes[10]
    broken.ID = 11
    broken.Timezone = "Mars/Olympus"
    b.classes[11] = broken

    sender := &fakeSender{}
    sweeper := &enrollment.ReminderSweeper{
        Classes:    b,
        Recipients: b,
        Notifier:   enrollment.NewNotifier(b, sender),
    }
    now := time.Date(2025, time.January, 7, 23, 5, 0, 0, time.UTC)
    out, err := sweeper.Run(context.Background(), now)

    require.NoError(t, err)
    assert.Equal(t, 1, out.Sent)
}
