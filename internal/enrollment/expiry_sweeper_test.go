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

func newSweeper(b *memBackend, sender *fakeSender) (*enrollment.ExpirySweeper, *fakePublisher) {
    pub := &fakePublisher{}
    return &enrollment.ExpirySweeper{
        Reservations: b,
        Recipients:   b,
        Notifier:     enrollment.NewNotifier(b, sender),
        Events:       pub,
    }, pub
}

func TestExpirySweeper_LapsesOverdueEtransferBatch(t *testing.T) {
    // GIVEN: a two-class e-transfer batch whose 24h hold has passed
    // WHEN: the sweep runs
    // THEN: both rows move to ETRANSFER_LAPSED, the lapsed event fires
    //       once, and each recipient gets exactly one notice for the
    //       whole batch

    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addClass(11, "Physics 11", 8)
    b.addStudent(1, "Dana", 1)
    sender := &fakeSender{}
    ledger, _, _ := newLedger(b, sender)
    ctx := context.Background()

    res, err := ledger.Reserve(ctx, 1, []uint64{10, 11}, model.PaymentEtransfer)
    require.NoError(t, err)
    receivedNotices := sender.count()

    sweeper, pub := newSweeper(b, sender)
    out, err := sweeper.Run(ctx, testNow.Add(25*time.Hour))

    require.NoError(t, err)
    assert.Equal(t, 2, out.Expired)
    assert.Equal(t, 0, out.Anomalies)
    assert.Equal(t, 2, out.NotificationsSent, "one notice per recipient, not per class")
    assert.Equal(t, receivedNotices+2, sender.count())
    assert.Equal(t, 1, pub.lapsed)

    rows, err := b.ListByStudent(ctx, 1)
    require.NoError(t, err)
    for _, r := range rows {
        assert.Equal(t, model.StatusEtransferLapsed, r.Status)
    }

    // Lapsed batches cannot be confirmed afterwards.
    _, err = ledger.ConfirmBatch(ctx, 1, res.BatchToken)
    assert.ErrorIs(t, err, enrollment.ErrBatchNotFound)
}

func TestExpirySweeper_UnexpiredHoldUntouched(t *testing.T) {
    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 0)
    sender := &fakeSender{}
    ledger, _, _ := newLedger(b, sender)
    ctx := context.Background()

    _, err := ledger.Reserve(ctx, 1, []uint64{10}, model.PaymentEtransfer)
    require.NoError(t, err)

    sweeper, pub := newSweeper(b, sender)
    out, err := sweeper.Run(ctx, testNow.Add(23*time.Hour))

    require.NoError(t, err)
    assert.Equal(t, 0, out.Expired)
    assert.Equal(t, 0, pub.lapsed)
}

func TestExpirySweeper_RerunSendsNothingNew(t *testing.T) {
    // Idempotency: the second sweep finds no pending rows, and even if
    // rows lingered the dedup ledger would block a second notice.
    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 1)
    sender := &fakeSender{}
    ledger, _, _ := newLedger(b, sender)
    ctx := context.Background()

    _, err := ledger.Reserve(ctx, 1, []uint64{10}, model.PaymentEtransfer)
    require.NoError(t, err)

    sweeper, pub := newSweeper(b, sender)
    late := testNow.Add(25 * time.Hour)
    first, err := sweeper.Run(ctx, late)
    require.NoError(t, err)
    require.Equal(t, 1, first.Expired)
    sentAfterFirst := sender.count()

    second, err := sweeper.Run(ctx, late.Add(time.Minute))

    require.NoError(t, err)
    assert.Equal(t, 0, second.Expired)
    assert.Equal(t, 0, second.NotificationsSent)
    assert.Equal(t, sentAfterFirst, sender.count())
    assert.Equal(t, 1, pub.lapsed)
}

func TestExpirySweeper_ConfirmedBetweenQueryAndUpdateSkipped(t *testing.T) {
    // GIVEN: a hold that an admin confirms right as it expires
    // WHEN: the sweep's compare-and-set runs after the confirmation
    // THEN: the batch stays ACTIVE and no lapse notice goes out

    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 0)
    sender := &fakeSender{}
    ledger, _, _ := newLedger(b, sender)
    ctx := context.Background()

    res, err := ledger.Reserve(ctx, 1, []uint64{10}, model.PaymentEtransfer)
    require.NoError(t, err)
    _, err = ledger.ConfirmBatch(ctx, 1, res.BatchToken)
    require.NoError(t, err)
    sentAfterConfirm := sender.count()

    sweeper, pub := newSweeper(b, sender)
    out, err := sweeper.Run(ctx, testNow.Add(25*time.Hour))

    require.NoError(t, err)
    assert.Equal(t, 0, out.Expired)
    assert.Equal(t, 0, pub.lapsed)
    assert.Equal(t, sentAfterConfirm, sender.count())

    rows, err := b.ListByStudent(ctx, 1)
    require.NoError(t, err)
    require.Len(t, rows, 1)
    assert.Equal(t, model.StatusActive, rows[0].Status)
}

func TestExpirySweeper_ApprovalRowsDropPerStudent(t *testing.T) {
    // Approval rows carry no batch token; the sweep groups them per
    // student so each student hears about the drop once.
    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addClass(11, "Physics 11", 8)
    b.addStudent(1, "Dana", 1)
    b.addStudent(2, "Eli", 0)
    sender := &fakeSender{}
    ledger, _, _ := newLedger(b, sender)
    ctx := context.Background()

    _, err := ledger.Reserve(ctx, 1, []uint64{10, 11}, model.PaymentManual)
    require.NoError(t, err)
    _, err = ledger.Reserve(ctx, 2, []uint64{10}, model.PaymentManual)
    require.NoError(t, err)

    sweeper, pub := newSweeper(b, sender)
    out, err := sweeper.Run(ctx, testNow.Add(73*time.Hour))

    require.NoError(t, err)
    assert.Equal(t, 3, out.Expired)
    // Dana plus her guardian, plus Eli.
    assert.Equal(t, 3, out.NotificationsSent)
    assert.Equal(t, 0, pub.lapsed, "approval drops publish no lapsed event")

    for _, sid := range []uint64{1, 2} {
        rows, err := b.ListByStudent(ctx, sid)
        require.NoError(t, err)
        for _, r := range rows {
            assert.Equal(t, model.StatusDropped, r.Status)
        }
    }
}

func TestExpirySweeper_TokenlessEtransferRowIsAnomaly(t *testing.T) {
    // A pending e-transfer row without a batch token is corrupt data:
    // counted, skipped, and left untouched for manual review.
    b := newMemBackend()
    b.addClass(10, "Math 9", 8)
    b.addStudent(1, "Dana", 0)
    exp := testNow.Add(-time.Hour)
    b.reservations[1] = &model.Reservation{
        ID: 1, StudentID: 1, ClassID: 10,
        Status: model.StatusPendingEtransfer, PaymentMethod: model.PaymentEtransfer,
        HoldExpiresAt: &exp,
    }
    sender := &fakeSender{}

    sweeper, _ := newSweeper(b, sender)
    out, err := sweeper.Run(context.Background(), testNow)

    require.NoError(t, err)
    assert.Equal(t, 0, out.Expired)
    assert.Equal(t, 1, out.Anomalies)
    assert.Equal(t, model.StatusPendingEtransfer, b.reservations[1].Status)
}
