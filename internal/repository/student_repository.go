package repository

import (
    "context"
    "database/sql"
    "fmt"

    "github.com/talebm/tutoring-enrollment/internal/model"
)

// StudentRepo provides read access to students, guardians and their
// join table.  Its main job is resolving notification recipients: a
// student plus every linked guardian, each under a namespaced key so
// student and guardian ids cannot collide in the notification log.
type StudentRepo struct {
    db *sql.DB
}

// NewStudentRepo returns a new StudentRepo bound to the given database.
func NewStudentRepo(db *sql.DB) *StudentRepo { return &StudentRepo{db: db} }

// GetByID returns the student with the given id, or sql.ErrNoRows.
func (r *StudentRepo) GetByID(ctx context.Context, studentID uint64) (*model.Student, error) {
    const q = `SELECT id, user_id, full_name, email, created_at FROM students WHERE id = ?`
    var s model.Student
    var userID sql.NullInt64
    err := r.db.QueryRowContext(ctx, q, studentID).Scan(&s.ID, &userID, &s.FullName, &s.Email, &s.CreatedAt)
    if err != nil {
        return nil, err
    }
    if userID.Valid {
        uid := uint64(userID.Int64)
        s.UserID = &uid
    }
    return &s, nil
}

// GetByUserID returns the student record owned by the given portal
// account, or sql.ErrNoRows when the account has none.
func (r *StudentRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Student, error) {
    const q = `SELECT id, user_id, full_name, email, created_at FROM students WHERE user_id = ?`
    var s model.Student
    var uid sql.NullInt64
    err := r.db.QueryRowContext(ctx, q, userID).Scan(&s.ID, &uid, &s.FullName, &s.Email, &s.CreatedAt)
    if err != nil {
        return nil, err
    }
    if uid.Valid {
        u := uint64(uid.Int64)
        s.UserID = &u
    }
    return &s, nil
}

// StudentRecipients resolves the notification targets for one student:
// the student themselves followed by every linked guardian.
func (r *StudentRepo) StudentRecipients(ctx context.Context, studentID uint64) ([]model.Recipient, error) {
    s, err := r.GetByID(ctx, studentID)
    if err != nil {
        return nil, err
    }
    out := []model.Recipient{{
        Key:   fmt.Sprintf("student:%d", s.ID),
        Name:  s.FullName,
        Email: s.Email,
    }}
    const q = `SELECT g.id, g.full_name, g.email
               FROM guardians g
               JOIN student_guardians sg ON sg.guardian_id = g.id
               WHERE sg.student_id = ?
               ORDER BY g.id`
    rows, err := r.db.QueryContext(ctx, q, studentID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var g model.Guardian
        if err := rows.Scan(&g.ID, &g.FullName, &g.Email); err != nil {
            return nil, err
        }
        out = append(out, model.Recipient{
            Key:   fmt.Sprintf("guardian:%d", g.ID),
            Name:  g.FullName,
            Email: g.Email,
        })
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// ClassRecipients resolves the targets for a class-wide notice: every
// student with an ACTIVE reservation in the class plus their
// guardians.  A guardian linked to two enrolled siblings appears once
// per sibling; the notification log's per-recipient tuple still keeps
// them to one message per reference id.
func (r *StudentRepo) ClassRecipients(ctx context.Context, classID uint64) ([]model.Recipient, error) {
    const q = `SELECT DISTINCT s.id FROM students s
               JOIN reservations res ON res.student_id = s.id
               WHERE res.class_id = ? AND res.status = 'ACTIVE'
               ORDER BY s.id`
    rows, err := r.db.QueryContext(ctx, q, classID)
    if err != nil {
        return nil, err
    }
    var ids []uint64
    for rows.Next() {
        var sid uint64
        if scanErr := rows.Scan(&sid); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        ids = append(ids, sid)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    out := make([]model.Recipient, 0, len(ids))
    seen := make(map[string]bool)
    for _, sid := range ids {
        rcpts, err := r.StudentRecipients(ctx, sid)
        if err != nil {
            return nil, err
        }
        for _, rc := range rcpts {
            if seen[rc.Key] {
                continue
            }
            seen[rc.Key] = true
            out = append(out, rc)
        }
    }
    return out, nil
}
