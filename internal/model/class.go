package model

import "time"

// Class represents a weekly recurring class offered within a term.
// The schedule is stored as a weekday plus local wall-clock times in
// the class's own timezone; occurrence instants are derived on demand
// and never persisted.
//
// Fields:
//  ID        – primary key identifier.
//  TermID    – term this class belongs to.
//  Title     – display title (e.g. "Math 9 – Wednesdays").
//  MaxSeats  – capacity; the number of seat-occupying reservations
//              must never exceed this.
//  Weekday   – ISO weekday of the session (1=Monday .. 7=Sunday).
//  StartTime – local start time in "HH:MM" 24h format.
//  EndTime   – local end time in "HH:MM" 24h format.
//  Timezone  – IANA zone name the times are expressed in
//              (e.g. "America/Vancouver").
//  FeeCents  – per-term fee in cents.
//  IsActive  – whether the class accepts enrollments.
type Class struct {
    ID        uint64    // classes.id
    TermID    uint64    // classes.term_id
    Title     string    // classes.title
    MaxSeats  uint32    // classes.max_seats
    Weekday   int       // classes.weekday (ISO, 1=Mon..7=Sun)
    StartTime string    // classes.start_time ("15:04")
    EndTime   string    // classes.end_time ("15:04")
    Timezone  string    // classes.timezone (IANA name)
    FeeCents  uint32    // classes.fee_cents
    IsActive  bool      // classes.is_active
    CreatedAt time.Time // classes.created_at
    UpdatedAt time.Time // classes.updated_at
}
