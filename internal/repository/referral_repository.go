package repository

import (
    "context"
    "database/sql"
)

// ReferralRepo provides access to the referrals table.  Conversion is
// the only write path: a single conditional UPDATE whose row count
// doubles as the idempotency guard for issuing referral credit.
type ReferralRepo struct {
    db *sql.DB
}

// NewReferralRepo returns a new ReferralRepo bound to the given database.
func NewReferralRepo(db *sql.DB) *ReferralRepo { return &ReferralRepo{db: db} }

// ConvertPending converts the invitee's referral, if one exists in a
// convertible state.  The status predicate makes the UPDATE a
// compare-and-set: a concurrent or repeated conversion matches zero
// rows and reports false, so credit is issued at most once.
func (r *ReferralRepo) ConvertPending(ctx context.Context, inviteeStudentID uint64) (bool, error) {
    const q = `UPDATE referrals
               SET status = 'CONVERTED', converted_at = UTC_TIMESTAMP()
               WHERE invitee_student_id = ? AND status IN ('PENDING','REGISTERED')`
    result, err := r.db.ExecContext(ctx, q, inviteeStudentID)
    if err != nil {
        return false, err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}
