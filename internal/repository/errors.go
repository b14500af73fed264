// Package repository defines error types that are reused across
// multiple repositories. These sentinel values let higher layers
// such as handlers and services distinguish failure scenarios
// without string matching. For example, ErrForbidden indicates the
// current user is not allowed to touch a resource owned by someone
// else, while ErrDuplicateSlotHold signals that the slot_holds
// uniqueness constraint rejected an insert because a concurrent
// request created the row first.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicateSlotHold is returned when inserting a slot hold
// collides with the unique key on (professional_id, slot_date,
// start_time). The service layer treats it the same as finding a
// live hold owned by another session.
var ErrDuplicateSlotHold = errors.New("slot hold already exists")

// ErrEmailExists is returned when registering with an email that
// is already taken. Handlers should translate this into 409.
var ErrEmailExists = errors.New("email already exists")

// ErrProfessionalNotFound is returned when a professional id does
// not resolve to an active row. Handlers should translate this
// into 404.
var ErrProfessionalNotFound = errors.New("professional not found")
