package enrollment

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strconv"
    "time"

    "github.com/google/uuid"

    "github.com/talebm/tutoring-enrollment/internal/clock"
    "github.com/talebm/tutoring-enrollment/internal/model"
)

// Ledger turns enrollment requests into reservation rows and later
// confirms or cancels whole batches.  All capacity and uniqueness
// enforcement is delegated to the ReservationStore's transactional
// contract; the ledger orchestrates validation, token generation,
// notifications, events and referral side effects around it.
type Ledger struct {
    Reservations ReservationStore
    Classes      ClassStore
    Recipients   RecipientStore
    Referrals    ReferralStore
    Sessions     PaymentSessionStore
    Payments     PaymentProvider
    Notifier     *Notifier
    Events       EventPublisher
    Clock        clock.Clock

    // EtransferHold is how long an e-transfer batch occupies seats
    // before lapsing (default 24h).  ApprovalWindow is the analogous
    // deadline for manual-review enrollments.
    EtransferHold  time.Duration
    ApprovalWindow time.Duration
}

// ReserveResult is returned by Reserve.  BatchToken is set for the
// e-transfer path; RedirectURL for the card path (where no
// reservations exist yet); Reservations holds the created rows for
// the paths that insert synchronously.
type ReserveResult struct {
    BatchToken   string
    RedirectURL  string
    Reservations []model.Reservation
}

const (
    defaultEtransferHold  = 24 * time.Hour
    defaultApprovalWindow = 72 * time.Hour
)

func (l *Ledger) holdDeadline(now time.Time) time.Time {
    d := l.EtransferHold
    if d <= 0 {
        d = defaultEtransferHold
    }
    return now.Add(d)
}

func (l *Ledger) approvalDeadline(now time.Time) time.Time {
    d := l.ApprovalWindow
    if d <= 0 {
        d = defaultApprovalWindow
    }
    return now.Add(d)
}

// validateRequest rejects malformed input and classes outside the
// active term.  It returns the resolved classes on success.
func (l *Ledger) validateRequest(ctx context.Context, classIDs []uint64) ([]model.Class, error) {
    if len(classIDs) == 0 {
        return nil, ErrNoClasses
    }
    seen := make(map[uint64]struct{}, len(classIDs))
    for _, id := range classIDs {
        if _, dup := seen[id]; dup {
            return nil, ErrDuplicateClassIDs
        }
        seen[id] = struct{}{}
    }
    term, err := l.Classes.ActiveTerm(ctx)
    if err != nil {
        return nil, err
    }
    classes, err := l.Classes.ClassesByIDs(ctx, classIDs)
    if err != nil {
        return nil, err
    }
    if len(classes) != len(classIDs) {
        return nil, ErrInvalidTerm
    }
    for _, c := range classes {
        if c.TermID != term.ID || !c.IsActive {
            return nil, ErrInvalidTerm
        }
    }
    return classes, nil
}

// Reserve creates a reservation batch for the student.  The payment
// method decides the path:
//
//   - ETRANSFER: rows start PENDING_ETRANSFER under a fresh batch
//     token with a 24h hold; the token is returned so staff can
//     confirm the whole batch when the transfer arrives.
//   - MANUAL: rows start PENDING_APPROVAL with the approval-window
//     deadline; no shared token (expiry groups these per student).
//   - CARD: nothing is inserted.  A payment session is staged, the
//     provider charge is created, and the redirect URL is returned;
//     rows appear only when the success callback hits
//     FinalizeCardPayment.
//
// Capacity and duplicate failures are all-or-nothing: if one class in
// the batch is full the whole request fails naming that class, and no
// rows are inserted for the others.
func (l *Ledger) Reserve(ctx context.Context, studentID uint64, classIDs []uint64, method string) (ReserveResult, error) {
    classes, err := l.validateRequest(ctx, classIDs)
    if err != nil {
        return ReserveResult{}, err
    }
    now := l.Clock.Now()

    switch method {
    case model.PaymentEtransfer:
        token := uuid.NewString()
        exp := l.holdDeadline(now)
        rows, err := l.Reservations.CreateBatch(ctx, CreateBatchRequest{
            StudentID:     studentID,
            ClassIDs:      classIDs,
            Status:        model.StatusPendingEtransfer,
            PaymentMethod: model.PaymentEtransfer,
            BatchToken:    &token,
            HoldExpiresAt: &exp,
        })
        if err != nil {
            return ReserveResult{}, err
        }
        l.notifyBatch(ctx, studentID, model.NotifyEnrollmentReceived, token, map[string]string{
            "class_count": strconv.Itoa(len(rows)),
            "deadline":    exp.UTC().Format(time.RFC3339),
        })
        return ReserveResult{BatchToken: token, Reservations: rows}, nil

    case model.PaymentManual:
        exp := l.approvalDeadline(now)
        rows, err := l.Reservations.CreateBatch(ctx, CreateBatchRequest{
            StudentID:     studentID,
            ClassIDs:      classIDs,
            Status:        model.StatusPendingApproval,
            PaymentMethod: model.PaymentManual,
            HoldExpiresAt: &exp,
        })
        if err != nil {
            return ReserveResult{}, err
        }
        // Approval rows carry no batch token; the synthetic key off
        // the lowest row id matches how the expiry sweeper groups
        // them, so the dedup reference stays stable for the batch.
        minID := rows[0].ID
        for _, r := range rows {
            if r.ID < minID {
                minID = r.ID
            }
        }
        l.notifyBatch(ctx, studentID, model.NotifyEnrollmentReceived, fmt.Sprintf("approval_%d", minID), map[string]string{
            "class_count": strconv.Itoa(len(rows)),
            "deadline":    exp.UTC().Format(time.RFC3339),
        })
        return ReserveResult{Reservations: rows}, nil

    case model.PaymentCard:
        if l.Payments == nil {
            return ReserveResult{}, ErrCardUnavailable
        }
        // Preflight only: the binding capacity check runs again inside
        // FinalizeCardPayment once the provider reports success.
        if err := l.Reservations.CheckAvailability(ctx, studentID, classIDs); err != nil {
            return ReserveResult{}, err
        }
        token := uuid.NewString()
        var total uint32
        items := make([]string, 0, len(classes))
        for _, c := range classes {
            total += c.FeeCents
            items = append(items, c.Title)
        }
        if err := l.Sessions.Create(ctx, model.PaymentSession{
            Token:       token,
            StudentID:   studentID,
            ClassIDs:    classIDs,
            AmountCents: total,
            CreatedAt:   now,
        }); err != nil {
            return ReserveResult{}, err
        }
        redirect, err := l.Payments.CreateCharge(ctx, ChargeRequest{
            SessionToken: token,
            StudentID:    studentID,
            AmountCents:  total,
            LineItems:    items,
        })
        if err != nil {
            return ReserveResult{}, err
        }
        return ReserveResult{RedirectURL: redirect}, nil
    }
    return ReserveResult{}, ErrUnknownPaymentMethod
}

// ConfirmBatch transitions every still-pending reservation in the
// batch to ACTIVE.  Rows already confirmed or already lapsed are left
// untouched; re-confirming a fully confirmed batch is a no-op, not an
// error.  A student's first-ever confirmation converts any pending
// referral for them.
func (l *Ledger) ConfirmBatch(ctx context.Context, studentID uint64, batchToken string) ([]model.Reservation, error) {
    hadConfirmed, err := l.Reservations.HasConfirmed(ctx, studentID)
    if err != nil {
        return nil, err
    }
    moved, err := l.Reservations.TransitionBatch(ctx, studentID, batchToken,
        []string{model.StatusPendingEtransfer, model.StatusPendingApproval},
        model.StatusActive, nil)
    if err != nil {
        return nil, err
    }
    if len(moved) == 0 {
        // Batch exists but everything was already ACTIVE: idempotent
        // re-confirmation.
        return moved, nil
    }

    if !hadConfirmed {
        converted, err := l.Referrals.ConvertPending(ctx, studentID)
        if err != nil {
            log.Printf("ledger: referral conversion for student %d failed: %v", studentID, err)
        } else if converted {
            log.Printf("ledger: referral converted for student %d", studentID)
        }
    }

    classIDs := make([]uint64, 0, len(moved))
    for _, r := range moved {
        classIDs = append(classIDs, r.ClassID)
    }
    if l.Events != nil {
        if err := l.Events.BatchConfirmed(ctx, studentID, batchToken, classIDs); err != nil {
            log.Printf("ledger: publish confirmed event failed: %v", err)
        }
    }
    l.notifyBatch(ctx, studentID, model.NotifyEnrollmentConfirmed, batchToken, map[string]string{
        "class_count": strconv.Itoa(len(moved)),
    })
    return moved, nil
}

// CancelBatch transitions every non-terminal reservation in the batch
// to CANCELLED, recording the staff-supplied reason for audit.
func (l *Ledger) CancelBatch(ctx context.Context, studentID uint64, batchToken, reason string) ([]model.Reservation, error) {
    moved, err := l.Reservations.TransitionBatch(ctx, studentID, batchToken,
        []string{model.StatusPendingEtransfer, model.StatusPendingApproval, model.StatusActive},
        model.StatusCancelled, &reason)
    if err != nil {
        return nil, err
    }
    if len(moved) > 0 {
        l.notifyBatch(ctx, studentID, model.NotifyEnrollmentCancelled, batchToken, map[string]string{
            "class_count": strconv.Itoa(len(moved)),
            "reason":      reason,
        })
    }
    return moved, nil
}

// FinalizeCardPayment is the webhook entry for the provider's "payment
// succeeded for session X" signal.  The reservation insert runs first
// and repeats the full capacity transaction; the session is marked
// completed only once the batch exists.  A transient insert failure
// therefore leaves the session incomplete and the provider's retry
// runs the whole thing again, while a retry after success is detected
// as a replay (completed session, or an existing batch under this
// session's token when the completion write itself was lost) and is a
// harmless no-op.  If the class filled up while the student was
// paying, the insert fails and the anomaly is surfaced for manual
// review (refund) instead of overselling.
func (l *Ledger) FinalizeCardPayment(ctx context.Context, sessionToken string) ([]model.Reservation, error) {
    now := l.Clock.Now()
    sess, err := l.Sessions.Get(ctx, sessionToken)
    if err != nil {
        return nil, err
    }
    if sess.CompletedAt != nil {
        log.Printf("ledger: payment callback replay for session %s ignored", sessionToken)
        return nil, nil
    }

    hadConfirmed, err := l.Reservations.HasConfirmed(ctx, sess.StudentID)
    if err != nil {
        return nil, err
    }
    token := sess.Token
    rows, err := l.Reservations.CreateBatch(ctx, CreateBatchRequest{
        StudentID:     sess.StudentID,
        ClassIDs:      sess.ClassIDs,
        Status:        model.StatusActive,
        PaymentMethod: model.PaymentCard,
        BatchToken:    &token,
    })
    if err != nil {
        if errors.Is(err, ErrDuplicateReservation) && l.sessionBatchExists(ctx, sess) {
            // The batch was inserted by an earlier callback whose
            // completion write failed.  Repair the bookkeeping and
            // treat this retry as the replay it is.
            if _, _, cerr := l.Sessions.Complete(ctx, sessionToken, now); cerr != nil {
                log.Printf("ledger: complete session %s failed: %v", sessionToken, cerr)
            }
            return nil, nil
        }
        return nil, fmt.Errorf("paid session %s could not be seated: %w", sessionToken, err)
    }

    if _, _, err := l.Sessions.Complete(ctx, sessionToken, now); err != nil {
        // The batch exists; the next retry is absorbed above.
        log.Printf("ledger: complete session %s failed: %v", sessionToken, err)
    }

    if !hadConfirmed {
        if _, err := l.Referrals.ConvertPending(ctx, sess.StudentID); err != nil {
            log.Printf("ledger: referral conversion for student %d failed: %v", sess.StudentID, err)
        }
    }
    if l.Events != nil {
        if err := l.Events.BatchConfirmed(ctx, sess.StudentID, token, sess.ClassIDs); err != nil {
            log.Printf("ledger: publish confirmed event failed: %v", err)
        }
    }
    l.notifyBatch(ctx, sess.StudentID, model.NotifyEnrollmentConfirmed, token, map[string]string{
        "class_count": strconv.Itoa(len(rows)),
    })
    return rows, nil
}

// sessionBatchExists reports whether the session's reservation batch
// was already inserted.  Only consulted after a duplicate failure, to
// tell a lost completion write apart from a genuine cross-path
// conflict (the student enrolled in one of the classes another way
// while checkout was open).
func (l *Ledger) sessionBatchExists(ctx context.Context, sess model.PaymentSession) bool {
    rows, err := l.Reservations.ListByStudent(ctx, sess.StudentID)
    if err != nil {
        log.Printf("ledger: list reservations for student %d failed: %v", sess.StudentID, err)
        return false
    }
    for _, r := range rows {
        if r.BatchToken != nil && *r.BatchToken == sess.Token {
            return true
        }
    }
    return false
}

// notifyBatch sends a batch-scoped notice to the student and linked
// guardians.  Delivery is best-effort: failures are logged and left
// for manual follow-up, never rolled back into the reservation state.
// The reference id {studentID}_{batchToken} pins the dedup granularity
// to one notice per batch, not one per class row.
func (l *Ledger) notifyBatch(ctx context.Context, studentID uint64, notifType, batchToken string, params map[string]string) {
    rcpts, err := l.Recipients.StudentRecipients(ctx, studentID)
    if err != nil {
        log.Printf("ledger: resolve recipients for student %d failed: %v", studentID, err)
        return
    }
    ref := fmt.Sprintf("%d_%s", studentID, batchToken)
    l.Notifier.NotifyAll(ctx, rcpts, notifType, ref, notifType, params)
}
