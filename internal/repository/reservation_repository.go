package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
    "github.com/talebm/tutoring-enrollment/internal/model"
)

// ReservationRepo provides data access to the reservations table.  A
// reservation claims one seat in one class for one student; rows
// created by the same request share a batch token.  All timestamp
// fields are stored in UTC.
//
// Capacity enforcement lives here: CreateBatch locks the class rows,
// counts seat-occupying reservations and inserts inside one
// transaction, so two concurrent requests for the last seat cannot
// both succeed.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// occupyingPlaceholders is the literal IN-list for the seat-occupying
// status set.  Kept as a constant fragment so every capacity and
// duplicate query uses exactly the same set.
const occupyingPlaceholders = `'ACTIVE','PENDING_ETRANSFER','PENDING_APPROVAL'`

func placeholderList(n int) string {
    return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []interface{} {
    args := make([]interface{}, 0, len(ids))
    for _, id := range ids {
        args = append(args, id)
    }
    return args
}

// checkBatchTx verifies, inside the caller's transaction, that the
// student holds no seat-occupying reservation in any of the classes
// and that every class has a seat free.  The class rows must already
// be locked (SELECT ... FOR UPDATE) by the caller so the counts cannot
// move before the insert commits.
func (r *ReservationRepo) checkBatchTx(ctx context.Context, tx *sql.Tx, studentID uint64, classes []classSeatRow) error {
    ids := make([]uint64, 0, len(classes))
    for _, c := range classes {
        ids = append(ids, c.id)
    }
    inList := placeholderList(len(ids))

    // Duplicate check first: a student re-requesting a class they
    // already occupy is a client error, not a capacity problem.
    dupQ := `SELECT class_id FROM reservations
             WHERE student_id = ? AND class_id IN (` + inList + `)
             AND status IN (` + occupyingPlaceholders + `) LIMIT 1`
    args := append([]interface{}{studentID}, idArgs(ids)...)
    var dupClassID uint64
    err := tx.QueryRowContext(ctx, dupQ, args...).Scan(&dupClassID)
    if err == nil {
        return enrollment.ErrDuplicateReservation
    }
    if err != sql.ErrNoRows {
        return err
    }

    countQ := `SELECT class_id, COUNT(*) FROM reservations
               WHERE class_id IN (` + inList + `)
               AND status IN (` + occupyingPlaceholders + `)
               GROUP BY class_id`
    rows, err := tx.QueryContext(ctx, countQ, idArgs(ids)...)
    if err != nil {
        return err
    }
    defer rows.Close()
    taken := make(map[uint64]int, len(ids))
    for rows.Next() {
        var cid uint64
        var n int
        if err := rows.Scan(&cid, &n); err != nil {
            return err
        }
        taken[cid] = n
    }
    if err := rows.Err(); err != nil {
        return err
    }
    for _, c := range classes {
        if taken[c.id] >= int(c.maxSeats) {
            return &enrollment.CapacityError{ClassID: c.id, Title: c.title}
        }
    }
    return nil
}

// classSeatRow is the projection of a class row needed for capacity
// checks.
type classSeatRow struct {
    id       uint64
    title    string
    maxSeats uint32
}

// lockClassesTx selects the requested class rows FOR UPDATE, ordered
// by id.  The deterministic lock order prevents deadlocks between
// concurrent batches touching overlapping class sets.  A missing id
// means the class does not exist (or was passed twice); the caller's
// validation layer reports that as an invalid request.
func lockClassesTx(ctx context.Context, tx *sql.Tx, classIDs []uint64) ([]classSeatRow, error) {
    q := `SELECT id, title, max_seats FROM classes
          WHERE id IN (` + placeholderList(len(classIDs)) + `)
          ORDER BY id FOR UPDATE`
    rows, err := tx.QueryContext(ctx, q, idArgs(classIDs)...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]classSeatRow, 0, len(classIDs))
    for rows.Next() {
        var c classSeatRow
        if err := rows.Scan(&c.id, &c.title, &c.maxSeats); err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(out) != len(classIDs) {
        return nil, enrollment.ErrInvalidTerm
    }
    return out, nil
}

// CreateBatch atomically inserts one reservation per requested class.
// The class rows are locked first, then the duplicate and capacity
// checks run against the locked state, then all rows are inserted in
// one statement.  Any failure rolls the whole batch back: a request
// naming one full class creates nothing.
func (r *ReservationRepo) CreateBatch(ctx context.Context, req enrollment.CreateBatchRequest) ([]model.Reservation, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            tx.Rollback()
        }
    }()

    classes, err := lockClassesTx(ctx, tx, req.ClassIDs)
    if err != nil {
        return nil, err
    }
    if err := r.checkBatchTx(ctx, tx, req.StudentID, classes); err != nil {
        return nil, err
    }

    query := `INSERT INTO reservations (student_id, class_id, status, payment_method, batch_token, hold_expires_at) VALUES `
    args := make([]interface{}, 0, len(req.ClassIDs)*6)
    for i, cid := range req.ClassIDs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?)"
        var expires interface{}
        if req.HoldExpiresAt != nil {
            expires = req.HoldExpiresAt.UTC().Format("2006-01-02 15:04:05")
        }
        args = append(args, req.StudentID, cid, req.Status, req.PaymentMethod, req.BatchToken, expires)
    }
    result, err := tx.ExecContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    firstID, err := result.LastInsertId()
    if err != nil {
        return nil, err
    }
    // Query back the inserted rows to populate generated timestamps.
    // MySQL multi-row inserts assign consecutive ids starting at
    // LastInsertId.
    sel := `SELECT ` + reservationColumns + ` FROM reservations
            WHERE id >= ? AND student_id = ? ORDER BY id LIMIT ?`
    rows, err := tx.QueryContext(ctx, sel, firstID, req.StudentID, len(req.ClassIDs))
    if err != nil {
        return nil, err
    }
    created, err := scanReservations(rows)
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return created, nil
}

// CheckAvailability runs the duplicate and capacity checks without
// inserting anything.  It is a preflight for the card-payment path;
// the binding check runs again inside CreateBatch when the provider
// callback arrives.
func (r *ReservationRepo) CheckAvailability(ctx context.Context, studentID uint64, classIDs []uint64) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer tx.Rollback()
    classes, err := lockClassesTx(ctx, tx, classIDs)
    if err != nil {
        return err
    }
    return r.checkBatchTx(ctx, tx, studentID, classes)
}

const reservationColumns = `id, student_id, class_id, status, payment_method, batch_token, hold_expires_at, cancel_reason, created_at, updated_at`

// scanReservations drains a result set of reservationColumns rows.
// It always closes the rows.
func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
    defer rows.Close()
    out := make([]model.Reservation, 0)
    for rows.Next() {
        var res model.Reservation
        var batchToken, cancelReason sql.NullString
        var holdExpires sql.NullTime
        if err := rows.Scan(
            &res.ID, &res.StudentID, &res.ClassID, &res.Status, &res.PaymentMethod,
            &batchToken, &holdExpires, &cancelReason, &res.CreatedAt, &res.UpdatedAt,
        ); err != nil {
            return nil, err
        }
        if batchToken.Valid {
            bt := batchToken.String
            res.BatchToken = &bt
        }
        if holdExpires.Valid {
            exp := holdExpires.Time.UTC()
            res.HoldExpiresAt = &exp
        }
        if cancelReason.Valid {
            cr := cancelReason.String
            res.CancelReason = &cr
        }
        out = append(out, res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// TransitionBatch moves every reservation of the batch whose status is
// in `from` into `to`, returning the rows that actually moved.  The
// batch rows are locked for the duration so the expiry sweeper and an
// admin confirming by hand cannot interleave.
//
// ErrBatchNotFound is returned when the token matches no rows for the
// student, or when every row is already terminal: a lapsed batch must
// not be resurrectable by a late confirmation.  An existing batch
// where nothing matched `from` (e.g. re-confirming an ACTIVE batch)
// returns an empty slice and nil error.
func (r *ReservationRepo) TransitionBatch(ctx context.Context, studentID uint64, batchToken string, from []string, to string, reason *string) ([]model.Reservation, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            tx.Rollback()
        }
    }()

    sel := `SELECT id, status FROM reservations
            WHERE student_id = ? AND batch_token = ? ORDER BY id FOR UPDATE`
    rows, err := tx.QueryContext(ctx, sel, studentID, batchToken)
    if err != nil {
        return nil, err
    }
    type idStatus struct {
        id     uint64
        status string
    }
    batch := make([]idStatus, 0)
    for rows.Next() {
        var is idStatus
        if scanErr := rows.Scan(&is.id, &is.status); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        batch = append(batch, is)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if len(batch) == 0 {
        return nil, enrollment.ErrBatchNotFound
    }
    terminal := map[string]bool{
        model.StatusEtransferLapsed: true,
        model.StatusDropped:         true,
        model.StatusCancelled:       true,
    }
    allTerminal := true
    fromSet := make(map[string]bool, len(from))
    for _, s := range from {
        fromSet[s] = true
    }
    movedIDs := make([]uint64, 0, len(batch))
    for _, is := range batch {
        if !terminal[is.status] {
            allTerminal = false
        }
        if fromSet[is.status] {
            movedIDs = append(movedIDs, is.id)
        }
    }
    if allTerminal {
        return nil, enrollment.ErrBatchNotFound
    }
    if len(movedIDs) == 0 {
        if err := tx.Commit(); err != nil {
            return nil, err
        }
        committed = true
        return []model.Reservation{}, nil
    }

    upd := `UPDATE reservations SET status = ?, cancel_reason = ?, updated_at = UTC_TIMESTAMP()
            WHERE id IN (` + placeholderList(len(movedIDs)) + `)`
    args := append([]interface{}{to, reason}, idArgs(movedIDs)...)
    if _, err := tx.ExecContext(ctx, upd, args...); err != nil {
        return nil, err
    }
    sel2 := `SELECT ` + reservationColumns + ` FROM reservations
             WHERE id IN (` + placeholderList(len(movedIDs)) + `) ORDER BY id`
    rrows, err := tx.QueryContext(ctx, sel2, idArgs(movedIDs)...)
    if err != nil {
        return nil, err
    }
    moved, err := scanReservations(rrows)
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return moved, nil
}

// ExpiredPending returns every reservation in the given pending status
// whose hold deadline has passed.  Results are ordered by id so the
// sweeper's grouping is deterministic.
func (r *ReservationRepo) ExpiredPending(ctx context.Context, status string, now time.Time) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations
          WHERE status = ? AND hold_expires_at IS NOT NULL AND hold_expires_at < ?
          ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, status, now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return nil, err
    }
    return scanReservations(rows)
}

// LapseReservations compare-and-sets the listed rows from the expected
// pending status into the terminal status, returning how many actually
// moved.  Rows confirmed or cancelled since the sweeper queried them
// no longer match `from` and are left alone; that race resolving in
// the student's favour is the intended behavior.
func (r *ReservationRepo) LapseReservations(ctx context.Context, ids []uint64, from, to string) (int64, error) {
    if len(ids) == 0 {
        return 0, nil
    }
    q := `UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP()
          WHERE id IN (` + placeholderList(len(ids)) + `) AND status = ?`
    args := append([]interface{}{to}, idArgs(ids)...)
    args = append(args, from)
    result, err := r.db.ExecContext(ctx, q, args...)
    if err != nil {
        return 0, err
    }
    return result.RowsAffected()
}

// HasConfirmed reports whether the student has ever held an ACTIVE
// reservation.  Used to gate referral conversion to the first
// confirmation only.
func (r *ReservationRepo) HasConfirmed(ctx context.Context, studentID uint64) (bool, error) {
    const q = `SELECT EXISTS(SELECT 1 FROM reservations WHERE student_id = ? AND status = 'ACTIVE')`
    var exists bool
    if err := r.db.QueryRowContext(ctx, q, studentID).Scan(&exists); err != nil {
        return false, err
    }
    return exists, nil
}

// ListByStudent returns all reservations for the student, newest
// first.  Terminal rows are included; they are the student's
// enrollment history.
func (r *ReservationRepo) ListByStudent(ctx context.Context, studentID uint64) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations
          WHERE student_id = ? ORDER BY id DESC`
    rows, err := r.db.QueryContext(ctx, q, studentID)
    if err != nil {
        return nil, err
    }
    return scanReservations(rows)
}
