// Package clock abstracts "now" so expiry and recurrence logic can be
// tested deterministically.  Production code uses Real; tests inject a
// fixed or stepping fake.
package clock

import "time"

// Clock supplies the current instant.  Implementations must return
// UTC-comparable times (time.Time carries its own location, so any
// correctly-set instant works).
type Clock interface {
    Now() time.Time
}

// Real is the wall clock.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed is a Clock pinned to a single instant.  Useful in tests.
type Fixed struct{ T time.Time }

// Now returns the pinned instant.
func (f Fixed) Now() time.Time { return f.T }
