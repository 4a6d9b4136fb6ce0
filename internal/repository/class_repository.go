package repository

import (
    "context"
    "database/sql"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
    "github.com/talebm/tutoring-enrollment/internal/model"
)

// ClassRepo provides read access to the terms and classes tables.
// Class schedules are stored as weekday plus local wall-clock times;
// no occurrence instants live in the database.
type ClassRepo struct {
    db *sql.DB
}

// NewClassRepo returns a new ClassRepo bound to the given database.
func NewClassRepo(db *sql.DB) *ClassRepo { return &ClassRepo{db: db} }

const classColumns = `id, term_id, title, max_seats, weekday, start_time, end_time, timezone, fee_cents, is_active, created_at, updated_at`

func scanClass(row interface{ Scan(...interface{}) error }) (model.Class, error) {
    var c model.Class
    err := row.Scan(
        &c.ID, &c.TermID, &c.Title, &c.MaxSeats, &c.Weekday,
        &c.StartTime, &c.EndTime, &c.Timezone, &c.FeeCents,
        &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
    )
    return c, err
}

// ActiveTerm returns the single term flagged active.  Exactly one term
// is expected to be active; when none is, ErrInvalidTerm is returned
// so enrollment attempts between terms fail cleanly.
func (r *ClassRepo) ActiveTerm(ctx context.Context) (model.Term, error) {
    const q = `SELECT id, name, starts_on, ends_on, is_active FROM terms WHERE is_active = 1 LIMIT 1`
    var t model.Term
    err := r.db.QueryRowContext(ctx, q).Scan(&t.ID, &t.Name, &t.StartsOn, &t.EndsOn, &t.IsActive)
    if err == sql.ErrNoRows {
        return model.Term{}, enrollment.ErrInvalidTerm
    }
    if err != nil {
        return model.Term{}, err
    }
    return t, nil
}

// ClassesByIDs returns the classes with the given ids.  Missing ids
// are simply absent from the result; the caller compares lengths.
func (r *ClassRepo) ClassesByIDs(ctx context.Context, ids []uint64) ([]model.Class, error) {
    if len(ids) == 0 {
        return []model.Class{}, nil
    }
    q := `SELECT ` + classColumns + ` FROM classes
          WHERE id IN (` + placeholderList(len(ids)) + `) ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, idArgs(ids)...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Class, 0, len(ids))
    for rows.Next() {
        c, err := scanClass(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// ActiveClasses returns every active class of the given term, ordered
// by id.  The reminder sweeper walks this list on every run.
func (r *ClassRepo) ActiveClasses(ctx context.Context, termID uint64) ([]model.Class, error) {
    q := `SELECT ` + classColumns + ` FROM classes
          WHERE term_id = ? AND is_active = 1 ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, termID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Class, 0)
    for rows.Next() {
        c, err := scanClass(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// GetWithAvailability returns one class with its current seat count.
// sql.ErrNoRows is passed through for the handler to map to 404.
func (r *ClassRepo) GetWithAvailability(ctx context.Context, id uint64) (ClassAvailability, error) {
    q := `SELECT c.id, c.term_id, c.title, c.max_seats, c.weekday, c.start_time, c.end_time,
                 c.timezone, c.fee_cents, c.is_active, c.created_at, c.updated_at,
                 COALESCE(t.taken, 0)
          FROM classes c
          LEFT JOIN (
              SELECT class_id, COUNT(*) AS taken FROM reservations
              WHERE class_id = ? AND status IN (` + occupyingPlaceholders + `)
              GROUP BY class_id
          ) t ON t.class_id = c.id
          WHERE c.id = ?`
    var ca ClassAvailability
    err := r.db.QueryRowContext(ctx, q, id, id).Scan(
        &ca.Class.ID, &ca.Class.TermID, &ca.Class.Title, &ca.Class.MaxSeats,
        &ca.Class.Weekday, &ca.Class.StartTime, &ca.Class.EndTime,
        &ca.Class.Timezone, &ca.Class.FeeCents, &ca.Class.IsActive,
        &ca.Class.CreatedAt, &ca.Class.UpdatedAt, &ca.SeatsTaken,
    )
    if err != nil {
        return ClassAvailability{}, err
    }
    return ca, nil
}

// ClassAvailability pairs a class with its live seat usage for the
// public catalogue.  SeatsTaken counts seat-occupying reservations
// only; lapsed, dropped and cancelled rows free their seat.
type ClassAvailability struct {
    Class      model.Class `json:"class"`
    SeatsTaken int         `json:"seats_taken"`
}

// ListWithAvailability returns the active classes of the term together
// with their current seat counts.  The count is advisory for display:
// the binding check happens inside the reservation transaction.
func (r *ClassRepo) ListWithAvailability(ctx context.Context, termID uint64) ([]ClassAvailability, error) {
    q := `SELECT c.id, c.term_id, c.title, c.max_seats, c.weekday, c.start_time, c.end_time,
                 c.timezone, c.fee_cents, c.is_active, c.created_at, c.updated_at,
                 COALESCE(t.taken, 0)
          FROM classes c
          LEFT JOIN (
              SELECT class_id, COUNT(*) AS taken FROM reservations
              WHERE status IN (` + occupyingPlaceholders + `)
              GROUP BY class_id
          ) t ON t.class_id = c.id
          WHERE c.term_id = ? AND c.is_active = 1
          ORDER BY c.id`
    rows, err := r.db.QueryContext(ctx, q, termID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]ClassAvailability, 0)
    for rows.Next() {
        var ca ClassAvailability
        if err := rows.Scan(
            &ca.Class.ID, &ca.Class.TermID, &ca.Class.Title, &ca.Class.MaxSeats,
            &ca.Class.Weekday, &ca.Class.StartTime, &ca.Class.EndTime,
            &ca.Class.Timezone, &ca.Class.FeeCents, &ca.Class.IsActive,
            &ca.Class.CreatedAt, &ca.Class.UpdatedAt, &ca.SeatsTaken,
        ); err != nil {
            return nil, err
        }
        out = append(out, ca)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
