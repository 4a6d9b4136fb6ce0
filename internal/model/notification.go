package model

import "time"

// Notification types recorded in the dedup log.  The type together
// with the recipient key and reference id forms the idempotency tuple.
const (
    NotifyEnrollmentReceived  = "enrollment_received"  // batch created, payment instructions sent
    NotifyEnrollmentConfirmed = "enrollment_confirmed" // batch confirmed
    NotifyEnrollmentCancelled = "enrollment_cancelled" // batch cancelled by staff
    NotifyEtransferLapsed     = "etransfer_lapsed"     // e-transfer hold expired
    NotifyApprovalDropped     = "approval_dropped"     // approval window expired
    NotifyClassReminder1h     = "class_reminder_1h"    // session starts within the hour
    NotifyClassReminder24h    = "class_reminder_24h"   // session starts in 23–24h
)

// NotificationRecord is one row of the append-only notification log.
// The unique tuple (RecipientKey, Type, ReferenceID) is the
// at-most-once guarantee: a row's existence means "do not send again".
// Rows are never updated or deleted; the log doubles as an audit trail.
//
// The reference id is caller-constructed to encode exactly the
// granularity of "do not repeat this", e.g. "{classID}_{sessionDate}"
// for a per-occurrence reminder, or "{studentID}_{batchToken}" for a
// per-batch lapse notice.
type NotificationRecord struct {
    ID           uint64    // notification_log.id
    RecipientKey string    // notification_log.recipient_id
    Type         string    // notification_log.notification_type
    ReferenceID  string    // notification_log.reference_id
    SentAt       time.Time // notification_log.sent_at
}
