package model

import "time"

// PaymentSession stages an immediate-payment enrollment while the
// student completes checkout with the external provider.  No
// reservation rows exist until the provider's success callback; an
// abandoned or failed payment leaves only this staging row behind.
// CompletedAt is set exactly once (compare-and-set) so a replayed
// callback cannot create a second batch.
//
// Fields:
//  Token       – opaque session identifier; becomes the batch token of
//                the reservations created on success.
//  StudentID   – student checking out.
//  ClassIDs    – classes requested, comma-separated in the database.
//  AmountCents – total charge amount.
//  CreatedAt   – when checkout started.
//  CompletedAt – when the success callback was processed (null until then).
type PaymentSession struct {
    Token       string     // payment_sessions.token
    StudentID   uint64     // payment_sessions.student_id
    ClassIDs    []uint64   // payment_sessions.class_ids (CSV column)
    AmountCents uint32     // payment_sessions.amount_cents
    CreatedAt   time.Time  // payment_sessions.created_at
    CompletedAt *time.Time // payment_sessions.completed_at (nullable)
}
