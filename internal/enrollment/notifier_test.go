package enrollment_test

import (
    "context"
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
    "github.com/talebm/tutoring-enrollment/internal/model"
)

func TestCheckAndSend_AtMostOncePerTuple(t *testing.T) {
    // GIVEN: a fresh dedup ledger
    // WHEN: the same (recipient, type, reference) tuple is sent twice
    // THEN: only the first call delivers

    b := newMemBackend()
    sender := &fakeSender{}
    n := enrollment.NewNotifier(b, sender)
    rcpt := model.Recipient{Key: "student:1", Name: "Dana", Email: "dana@example.com"}
    ctx := context.Background()

    sent, err := n.CheckAndSend(ctx, rcpt, model.NotifyEnrollmentConfirmed, "1_tok", "enrollment_confirmed", nil)
    require.NoError(t, err)
    assert.True(t, sent)

    sent, err = n.CheckAndSend(ctx, rcpt, model.NotifyEnrollmentConfirmed, "1_tok", "enrollment_confirmed", nil)
    require.NoError(t, err)
    assert.False(t, sent)

    assert.Equal(t, 1, sender.count())
    assert.Equal(t, 1, b.recordCount())
}

func TestCheckAndSend_DistinctTuplesAllDeliver(t *testing.T) {
    b := newMemBackend()
    sender := &fakeSender{}
    n := enrollment.NewNotifier(b, sender)
    rcpt := model.Recipient{Key: "student:1"}
    ctx := context.Background()

    // Same reference, different type; same type, different reference;
    // same everything, different recipient.
    _, err := n.CheckAndSend(ctx, rcpt, model.NotifyClassReminder24h, "5_2025-01-08", "class_reminder_24h", nil)
    require.NoError(t, err)
    _, err = n.CheckAndSend(ctx, rcpt, model.NotifyClassReminder1h, "5_2025-01-08", "class_reminder_1h", nil)
    require.NoError(t, err)
    _, err = n.CheckAndSend(ctx, rcpt, model.NotifyClassReminder24h, "5_2025-01-15", "class_reminder_24h", nil)
    require.NoError(t, err)
    other := model.Recipient{Key: "guardian:9"}
    _, err = n.CheckAndSend(ctx, other, model.NotifyClassReminder24h, "5_2025-01-08", "class_reminder_24h", nil)
    require.NoError(t, err)

    assert.Equal(t, 4, sender.count())
}

func TestCheckAndSend_FailedDeliveryLeavesNoRecord(t *testing.T) {
    // A failed send must stay retryable: no dedup record is written,
    // and the next attempt delivers.
    b := newMemBackend()
    sender := &fakeSender{}
    sender.fail(errSendBroken)
    n := enrollment.NewNotifier(b, sender)
    rcpt := model.Recipient{Key: "student:1"}
    ctx := context.Background()

    sent, err := n.CheckAndSend(ctx, rcpt, model.NotifyEtransferLapsed, "1_tok", "etransfer_lapsed", nil)
    assert.ErrorIs(t, err, errSendBroken)
    assert.False(t, sent)
    assert.Equal(t, 0, b.recordCount())

    sender.fail(nil)
    sent, err = n.CheckAndSend(ctx, rcpt, model.NotifyEtransferLapsed, "1_tok", "etransfer_lapsed", nil)
    require.NoError(t, err)
    assert.True(t, sent)
    assert.Equal(t, 1, sender.count())
}

func TestCheckAndSend_ConcurrentSweepsRecordOnce(t *testing.T) {
    // GIVEN: many goroutines racing on one tuple, as overlapping sweep
    //        runs would
    // THEN: exactly one ledger record stands.  Delivery count is not
    //       asserted: the check-then-send window allows extra attempts,
    //       the ledger is what bounds the bookkeeping.

    b := newMemBackend()
    sender := &fakeSender{}
    n := enrollment.NewNotifier(b, sender)
    rcpt := model.Recipient{Key: "student:1"}
    ctx := context.Background()

    var wg sync.WaitGroup
    for i := 0; i < 16; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            _, err := n.CheckAndSend(ctx, rcpt, model.NotifyEnrollmentConfirmed, "1_tok", "enrollment_confirmed", nil)
            assert.NoError(t, err)
        }()
    }
    wg.Wait()

    assert.Equal(t, 1, b.recordCount())
    assert.GreaterOrEqual(t, sender.count(), 1)
}

func TestNotifyAll_IsolatesPerRecipientFailures(t *testing.T) {
    // One undeliverable recipient must not block the others.
    b := newMemBackend()
    sender := &fakeSender{failFor: "student:2"}
    n := enrollment.NewNotifier(b, sender)
    rcpts := []model.Recipient{
        {Key: "student:1"}, {Key: "student:2"}, {Key: "guardian:7"},
    }

    delivered := n.NotifyAll(context.Background(), rcpts, model.NotifyEtransferLapsed, "ref", "etransfer_lapsed", nil)

    assert.Equal(t, 2, delivered)
    assert.Equal(t, 2, b.recordCount())
}

func TestNewNotifier_NilDependencyPanics(t *testing.T) {
    assert.Panics(t, func() { enrollment.NewNotifier(nil, &fakeSender{}) })
    assert.Panics(t, func() { enrollment.NewNotifier(newMemBackend(), nil) })
}
