package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/go-sql-driver/mysql"
)

// NotificationRepo provides access to the append-only notification
// log.  The unique index over (recipient_id, notification_type,
// reference_id) is the at-most-once send guarantee; this repository
// never updates or deletes rows.
type NotificationRepo struct {
    db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the given database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// mysqlDuplicateEntry is the server error number for a unique key
// violation.
const mysqlDuplicateEntry = 1062

// AlreadySent reports whether the tuple is already recorded.
func (r *NotificationRepo) AlreadySent(ctx context.Context, recipientKey, notifType, referenceID string) (bool, error) {
    const q = `SELECT EXISTS(
        SELECT 1 FROM notification_log
        WHERE recipient_id = ? AND notification_type = ? AND reference_id = ?)`
    var exists bool
    if err := r.db.QueryRowContext(ctx, q, recipientKey, notifType, referenceID).Scan(&exists); err != nil {
        return false, err
    }
    return exists, nil
}

// RecordSent appends the tuple to the log.  A duplicate-key error
// means another worker recorded the same tuple first; since the goal
// (exactly one record) is met either way, it is reported as success.
func (r *NotificationRepo) RecordSent(ctx context.Context, recipientKey, notifType, referenceID string) error {
    const q = `INSERT INTO notification_log (recipient_id, notification_type, reference_id, sent_at)
               VALUES (?, ?, ?, UTC_TIMESTAMP())`
    _, err := r.db.ExecContext(ctx, q, recipientKey, notifType, referenceID)
    var myErr *mysql.MySQLError
    if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
        return nil
    }
    return err
}
