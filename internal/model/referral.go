package model

import "time"

// Referral status values.  A referral is convertible while PENDING or
// REGISTERED; CONVERTED is terminal.  The status transition itself is
// the idempotency guard for credit issuance.
const (
    ReferralPending    = "PENDING"    // invite sent, invitee not yet registered
    ReferralRegistered = "REGISTERED" // invitee created an account
    ReferralConverted  = "CONVERTED"  // invitee's first enrollment confirmed; credit issued
)

// Referral tracks an invite from an existing student.  It converts at
// most once, when the invitee's first reservation is confirmed.
//
// Fields:
//  ID               – primary key identifier.
//  InviterStudentID – student who sent the invite.
//  InviteeStudentID – invited student (nullable until registered).
//  Status           – lifecycle state (see constants above).
//  CreatedAt        – timestamp of creation.
//  ConvertedAt      – when the credit was issued (null until then).
type Referral struct {
    ID               uint64     // referrals.id
    InviterStudentID uint64     // referrals.inviter_student_id
    InviteeStudentID *uint64    // referrals.invitee_student_id (nullable)
    Status           string     // referrals.status
    CreatedAt        time.Time  // referrals.created_at
    ConvertedAt      *time.Time // referrals.converted_at (nullable)
}
