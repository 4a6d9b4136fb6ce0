// Package repository implements the MySQL persistence layer.  Domain
// sentinel errors (batch not found, capacity, duplicates) live in the
// enrollment package and are returned from here so handlers can map
// them without importing repository internals.  ErrEmailExists, the
// one sentinel owned by this package, lives next to UserRepo.
package repository
