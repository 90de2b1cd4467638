// Package repository defines error types that are reused across the
// persistence layer. These sentinel values let higher layers such as
// the allocator and handlers distinguish between failure scenarios.
// ErrDuplicateEvent signals that an idempotency key already exists and
// the event is a redelivery; ErrUnknownRecord signals a lookup miss;
// ErrInvariantViolation signals that the database rejected a position
// write that the locking discipline should have made impossible.
package repository

import "errors"

// ErrDuplicateEvent is returned by Insert when a record with the same
// (product_id, order_ref, item_ref) already exists. Callers must treat
// this as "already processed", never as a fatal error.
var ErrDuplicateEvent = errors.New("duplicate event")

// ErrUnknownRecord is returned when no allocation matches the given
// idempotency key. Retirement of an unknown record is a no-op at the
// allocator level.
var ErrUnknownRecord = errors.New("unknown record")

// ErrInvariantViolation is returned when a position write trips the
// (product_id, position) uniqueness constraint. It indicates two
// renumber passes interleaved for the same product, which the advisory
// lock is supposed to prevent. It must be logged loudly and never
// silently swallowed.
var ErrInvariantViolation = errors.New("position invariant violation")

// ErrLockUnavailable is returned when the per-product advisory lock
// could not be acquired before the lock timeout. The operation is safe
// to retry in full.
var ErrLockUnavailable = errors.New("product lock unavailable")
