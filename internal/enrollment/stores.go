package enrollment

import (
    "context"
    "time"

    "github.com/talebm/tutoring-enrollment/internal/model"
)

// CreateBatchRequest describes one atomic reservation insert.  The
// store must perform the duplicate and capacity checks inside the same
// transaction (or conditional write) as the insert itself; a separate
// read-then-write would let two concurrent callers both see "1 seat
// free" and oversell.
type CreateBatchRequest struct {
    StudentID     uint64
    ClassIDs      []uint64
    Status        string
    PaymentMethod string
    BatchToken    *string
    HoldExpiresAt *time.Time
}

// ReservationStore is the persistence contract of the ledger and the
// expiry sweeper.  Implementations must guarantee, under concurrent
// callers:
//   - CreateBatch never returns success for more seat-occupying rows
//     than a class's capacity allows (capacity check and insert share
//     one transaction);
//   - at most one seat-occupying reservation exists per
//     (student, class) pair;
//   - transitions are compare-and-set on the expected source status,
//     so a sweep cannot downgrade a row an admin confirmed moments
//     earlier.
type ReservationStore interface {
    // CreateBatch inserts one reservation per class, all or nothing.
    // Returns *CapacityError, ErrDuplicateReservation or
    // ErrInvalidTerm on precondition failure.
    CreateBatch(ctx context.Context, req CreateBatchRequest) ([]model.Reservation, error)

    // CheckAvailability runs CreateBatch's precondition checks without
    // inserting.  Used as a preflight before redirecting a student to
    // the payment provider; the binding check happens again on the
    // success callback.
    CheckAvailability(ctx context.Context, studentID uint64, classIDs []uint64) error

    // TransitionBatch moves every reservation of the student's batch
    // whose status is in from to the to status, returning the rows
    // actually transitioned.  Rows in other states are left untouched.
    // ErrBatchNotFound when the token is unknown for this student or
    // every row is already terminal.
    TransitionBatch(ctx context.Context, studentID uint64, batchToken string, from []string, to string, reason *string) ([]model.Reservation, error)

    // ExpiredPending returns reservations in the given pending status
    // whose hold deadline has passed.
    ExpiredPending(ctx context.Context, status string, now time.Time) ([]model.Reservation, error)

    // LapseReservations compare-and-sets the given rows from one
    // status to another and reports how many actually moved.
    LapseReservations(ctx context.Context, ids []uint64, from, to string) (int64, error)

    // HasConfirmed reports whether the student has any ACTIVE
    // reservation.  Used to detect a first-ever confirmation.
    HasConfirmed(ctx context.Context, studentID uint64) (bool, error)

    // ListByStudent returns all of a student's reservations, newest
    // first.
    ListByStudent(ctx context.Context, studentID uint64) ([]model.Reservation, error)
}

// ClassStore supplies term and class reads for validation, pricing and
// the reminder sweep.
type ClassStore interface {
    ActiveTerm(ctx context.Context) (model.Term, error)
    ClassesByIDs(ctx context.Context, ids []uint64) ([]model.Class, error)
    ActiveClasses(ctx context.Context, termID uint64) ([]model.Class, error)
}

// RecipientStore resolves notification targets.
type RecipientStore interface {
    // StudentRecipients returns the student plus every linked guardian.
    StudentRecipients(ctx context.Context, studentID uint64) ([]model.Recipient, error)
    // ClassRecipients returns, for every ACTIVE enrollment in the
    // class, the student and their linked guardians.
    ClassRecipients(ctx context.Context, classID uint64) ([]model.Recipient, error)
}

// ReferralStore converts pending referrals.  The conversion must be a
// single conditional update so calling it twice cannot double-convert.
type ReferralStore interface {
    // ConvertPending moves the student's referral from a convertible
    // state to CONVERTED and reports whether this call did the move.
    ConvertPending(ctx context.Context, inviteeStudentID uint64) (bool, error)
}

// DedupStore is the append-only notification ledger.  The unique
// constraint on (recipient, type, reference) at the storage layer is
// the only synchronization primitive CheckAndSend relies on.
type DedupStore interface {
    AlreadySent(ctx context.Context, recipientKey, notifType, referenceID string) (bool, error)
    // RecordSent inserts the tuple; a duplicate-key violation must be
    // treated as success, not error.
    RecordSent(ctx context.Context, recipientKey, notifType, referenceID string) error
}

// PaymentSessionStore stages immediate-payment checkouts.
type PaymentSessionStore interface {
    Create(ctx context.Context, s model.PaymentSession) error
    // Get returns the session, ErrSessionNotFound when the token is
    // unknown.
    Get(ctx context.Context, token string) (model.PaymentSession, error)
    // Complete marks the session completed exactly once.  The boolean
    // reports whether this call won the compare-and-set.  The ledger
    // calls this only after the reservations exist: a session must
    // never read as completed while its batch is missing, or a
    // transient insert failure would eat a paid enrollment (the
    // provider's retry would be mistaken for a replay).
    Complete(ctx context.Context, token string, now time.Time) (model.PaymentSession, bool, error)
}

// NotificationSender delivers one rendered message.  A nil return
// means successfully delivered; anything else means the message must
// be retried by a later sweep.  Implementations must bound their own
// timeouts; "still in flight" is a failure, never a success.
type NotificationSender interface {
    Send(ctx context.Context, rcpt model.Recipient, templateKey string, params map[string]string) error
}

// ChargeRequest describes a one-time charge for the external payment
// provider.
type ChargeRequest struct {
    SessionToken string
    StudentID    uint64
    AmountCents  uint32
    LineItems    []string
}

// PaymentProvider creates one-time charges.  The provider's success
// signal arrives asynchronously through the payment webhook and feeds
// FinalizeCardPayment.
type PaymentProvider interface {
    CreateCharge(ctx context.Context, req ChargeRequest) (redirectURL string, err error)
}

// EventPublisher emits domain events for downstream consumers (audit
// log, analytics).  Publishing is fire-and-forget from the ledger's
// point of view: errors are logged by implementations and never fail
// the originating operation.
type EventPublisher interface {
    BatchConfirmed(ctx context.Context, studentID uint64, batchToken string, classIDs []uint64) error
    BatchLapsed(ctx context.Context, studentID uint64, batchToken string, reservationIDs []uint64) error
}
