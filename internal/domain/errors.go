package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound        = errors.New("not found")
	ErrStateViolation  = errors.New("illegal queue status transition")
	ErrEntryInProgress = errors.New("queue entry is in progress and cannot be deleted")
	ErrUnknownNoteKind = errors.New("unknown note kind")
	ErrEmptyNoteText   = errors.New("note text must not be empty")
	ErrInvalidOwner    = errors.New("owner id must not be empty")
	ErrQueueFull       = errors.New("queue is at capacity, try again later")

	// ErrExternalService wraps every translation or generation failure,
	// including timeouts.
	ErrExternalService = errors.New("external service error")
	ErrEmptyResult     = errors.New("generation service returned an empty result")
)
