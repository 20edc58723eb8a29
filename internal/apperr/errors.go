package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition indicates a status graph violation.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrUnavailable indicates that no courier satisfies the dispatch constraints.
var ErrUnavailable = errors.New("unavailable")

// ErrTransport indicates a broadcast or live connection failure.
var ErrTransport = errors.New("transport error")

// ErrInternal wraps persistence and collaborator failures.
var ErrInternal = errors.New("internal error")
