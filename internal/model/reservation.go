package model

import "time"

// Reservation status values.  The first three occupy a seat and count
// against class capacity; the rest are terminal and retained for audit.
const (
    StatusPendingEtransfer = "PENDING_ETRANSFER" // awaiting an e-transfer, 24h hold
    StatusPendingApproval  = "PENDING_APPROVAL"  // awaiting manual staff approval
    StatusActive           = "ACTIVE"            // confirmed, seat taken for the term
    StatusEtransferLapsed  = "ETRANSFER_LAPSED"  // hold expired before payment arrived
    StatusDropped          = "DROPPED"           // approval window expired
    StatusCancelled        = "CANCELLED"         // explicitly cancelled by staff
)

// SeatOccupyingStatuses lists every status that counts against a
// class's capacity.  Capacity and duplicate checks must use exactly
// this set.
var SeatOccupyingStatuses = []string{StatusActive, StatusPendingEtransfer, StatusPendingApproval}

// Payment methods accepted at enrollment time.  The method decides the
// initial reservation status and whether a hold expiry applies.
const (
    PaymentCard      = "CARD"      // immediate online payment; rows appear only after the provider callback
    PaymentEtransfer = "ETRANSFER" // manual e-transfer; 24h hold under a shared batch token
    PaymentManual    = "MANUAL"    // already paid / pay later; staff approval required
)

// Reservation records one student's claim on one seat in one class.
// Reservations created in the same request share a batch token so
// they confirm, cancel and expire together.  Rows are never deleted;
// terminal states remain as an audit trail.
//
// Fields:
//  ID            – primary key identifier.
//  StudentID     – student holding (or having held) the seat.
//  ClassID       – class the seat belongs to.
//  Status        – lifecycle state (see constants above).
//  PaymentMethod – method chosen at enrollment time.
//  BatchToken    – groups reservations created together; nil for
//                  approval-path rows which are grouped per student.
//  HoldExpiresAt – deadline for pending states; nil once confirmed.
//  CancelReason  – staff-supplied reason, set only on CANCELLED rows.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last transition timestamp.
type Reservation struct {
    ID            uint64     // reservations.id
    StudentID     uint64     // reservations.student_id
    ClassID       uint64     // reservations.class_id
    Status        string     // reservations.status
    PaymentMethod string     // reservations.payment_method
    BatchToken    *string    // reservations.batch_token (nullable)
    HoldExpiresAt *time.Time // reservations.hold_expires_at (nullable)
    CancelReason  *string    // reservations.cancel_reason (nullable)
    CreatedAt     time.Time  // reservations.created_at
    UpdatedAt     time.Time  // reservations.updated_at
}

// Occupying reports whether the reservation currently counts against
// its class's capacity.
func (r Reservation) Occupying() bool {
    switch r.Status {
    case StatusActive, StatusPendingEtransfer, StatusPendingApproval:
        return true
    }
    return false
}

// Terminal reports whether the reservation is in a final state that
// cannot be re-entered through the ledger.
func (r Reservation) Terminal() bool {
    switch r.Status {
    case StatusEtransferLapsed, StatusDropped, StatusCancelled:
        return true
    }
    return false
}
