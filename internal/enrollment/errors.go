// Package enrollment implements the reservation ledger, the periodic
// sweeps and the at-most-once notification discipline around them.
// Persistence lives behind the narrow store interfaces in stores.go;
// the MySQL implementations are in internal/repository.
package enrollment

import (
    "errors"
    "fmt"
)

// ErrDuplicateClassIDs is returned when the caller supplied the same
// class more than once in a single request.  This is a caller error,
// not something to silently deduplicate.
var ErrDuplicateClassIDs = errors.New("duplicate class ids in request")

// ErrNoClasses is returned when a reserve request names no classes.
var ErrNoClasses = errors.New("no class ids in request")

// ErrDuplicateReservation is returned when the student already holds a
// seat-occupying reservation in one of the requested classes.
var ErrDuplicateReservation = errors.New("student already has a reservation in a requested class")

// ErrInvalidTerm is returned when a requested class does not exist or
// does not belong to the currently active term.
var ErrInvalidTerm = errors.New("class does not belong to the active term")

// ErrBatchNotFound is returned by confirm/cancel when no batch with
// the given token exists for the student, or when every reservation in
// it has already reached a lapsed/dropped/cancelled state.
var ErrBatchNotFound = errors.New("batch not found or already terminal")

// ErrSessionNotFound is returned when a payment callback references an
// unknown checkout session.
var ErrSessionNotFound = errors.New("payment session not found")

// ErrUnknownPaymentMethod is returned for a payment method outside the
// accepted set.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// ErrCardUnavailable is returned for card requests when no payment
// provider is configured for this deployment.
var ErrCardUnavailable = errors.New("card payments are not configured")

// CapacityError reports that one specific class is full.  The error
// identifies the class so the caller can tell the student which of the
// requested classes blocked the whole batch.
type CapacityError struct {
    ClassID uint64
    Title   string
}

func (e *CapacityError) Error() string {
    return fmt.Sprintf("class %q (id %d) has no remaining seats", e.Title, e.ClassID)
}
