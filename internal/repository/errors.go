// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as handlers and services to distinguish between failure
// scenarios with errors.Is instead of string matching.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as cancelling an occurrence that already
// reached a terminal status. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrCapacityExceeded is returned when a seat booking is attempted on
// a full occurrence and waitlisting is not permitted.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrStaleTransition is returned by compare-and-swap status updates
// when the row was not in the expected state. Callers racing over the
// same record treat this as "someone else got there first".
var ErrStaleTransition = errors.New("stale status transition")
