package engine

import "errors"

var (
	// ErrValidation rejects a send before any I/O: blank text or receiver.
	ErrValidation = errors.New("validation failed")

	// ErrSubscription reports that the live feed terminated. The view is
	// frozen at its last known state; it no longer tracks the store.
	ErrSubscription = errors.New("subscription terminated")

	// ErrSendFailure reports that a durable append did not complete. The
	// optimistic pending entry stays visible; there is no rollback.
	ErrSendFailure = errors.New("send failed")
)
