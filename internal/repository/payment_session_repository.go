package repository

import (
    "context"
    "database/sql"
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
    "github.com/talebm/tutoring-enrollment/internal/model"
)

// PaymentSessionRepo provides access to the payment_sessions table.
// A session stages a card checkout; completed_at is written exactly
// once so a replayed provider callback cannot seat a second batch.
type PaymentSessionRepo struct {
    db *sql.DB
}

// NewPaymentSessionRepo returns a new PaymentSessionRepo bound to the given database.
func NewPaymentSessionRepo(db *sql.DB) *PaymentSessionRepo { return &PaymentSessionRepo{db: db} }

func encodeClassIDs(ids []uint64) string {
    parts := make([]string, 0, len(ids))
    for _, id := range ids {
        parts = append(parts, strconv.FormatUint(id, 10))
    }
    return strings.Join(parts, ",")
}

func decodeClassIDs(csv string) ([]uint64, error) {
    parts := strings.Split(csv, ",")
    ids := make([]uint64, 0, len(parts))
    for _, p := range parts {
        id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
        if err != nil {
            return nil, fmt.Errorf("bad class_ids csv %q: %w", csv, err)
        }
        ids = append(ids, id)
    }
    return ids, nil
}

// Create inserts a new staging row for a checkout.
func (r *PaymentSessionRepo) Create(ctx context.Context, s model.PaymentSession) error {
    const q = `INSERT INTO payment_sessions (token, student_id, class_ids, amount_cents, created_at)
               VALUES (?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q,
        s.Token, s.StudentID, encodeClassIDs(s.ClassIDs), s.AmountCents,
        s.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
    return err
}

// Get returns one session by token.
func (r *PaymentSessionRepo) Get(ctx context.Context, token string) (model.PaymentSession, error) {
    const q = `SELECT token, student_id, class_ids, amount_cents, created_at, completed_at
               FROM payment_sessions WHERE token = ?`
    var s model.PaymentSession
    var csv string
    var completedAt sql.NullTime
    err := r.db.QueryRowContext(ctx, q, token).Scan(
        &s.Token, &s.StudentID, &csv, &s.AmountCents, &s.CreatedAt, &completedAt)
    if err == sql.ErrNoRows {
        return model.PaymentSession{}, enrollment.ErrSessionNotFound
    }
    if err != nil {
        return model.PaymentSession{}, err
    }
    if s.ClassIDs, err = decodeClassIDs(csv); err != nil {
        return model.PaymentSession{}, err
    }
    if completedAt.Valid {
        t := completedAt.Time.UTC()
        s.CompletedAt = &t
    }
    return s, nil
}

// Complete marks the session completed if it was not already.  The
// conditional UPDATE is the compare-and-set: the caller that flips
// the column wins; n=0 means another callback got there first.  The
// ledger performs this only after the reservation batch exists, so a
// completed session always has its rows.  The session row is returned
// either way so replays can still be logged with context.
func (r *PaymentSessionRepo) Complete(ctx context.Context, token string, now time.Time) (model.PaymentSession, bool, error) {
    const upd = `UPDATE payment_sessions SET completed_at = ?
                 WHERE token = ? AND completed_at IS NULL`
    result, err := r.db.ExecContext(ctx, upd, now.UTC().Format("2006-01-02 15:04:05"), token)
    if err != nil {
        return model.PaymentSession{}, false, err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return model.PaymentSession{}, false, err
    }

    const sel = `SELECT token, student_id, class_ids, amount_cents, created_at, completed_at
                 FROM payment_sessions WHERE token = ?`
    var s model.PaymentSession
    var csv string
    var completedAt sql.NullTime
    err = r.db.QueryRowContext(ctx, sel, token).Scan(
        &s.Token, &s.StudentID, &csv, &s.AmountCents, &s.CreatedAt, &completedAt)
    if err == sql.ErrNoRows {
        return model.PaymentSession{}, false, enrollment.ErrSessionNotFound
    }
    if err != nil {
        return model.PaymentSession{}, false, err
    }
    if s.ClassIDs, err = decodeClassIDs(csv); err != nil {
        return model.PaymentSession{}, false, err
    }
    if completedAt.Valid {
        t := completedAt.Time.UTC()
        s.CompletedAt = &t
    }
    return s, n > 0, nil
}
