package model

import "time"

// Term represents a bounded teaching period (e.g. "Winter 2025").
// Exactly one term is flagged active at a time; enrollment requests
// are only accepted for classes belonging to the active term.
//
// Fields:
//  ID       – primary key identifier.
//  Name     – human readable label.
//  StartsOn – first calendar day of the term (inclusive).
//  EndsOn   – last calendar day of the term (inclusive).
//  IsActive – whether this is the currently open term.
type Term struct {
    ID       uint64    // terms.id
    Name     string    // terms.name
    StartsOn time.Time // terms.starts_on (date, midnight UTC)
    EndsOn   time.Time // terms.ends_on (date, midnight UTC)
    IsActive bool      // terms.is_active
}
