package model

import "errors"

// Sentinel errors for the client core.
var (
	// ErrInvalidInput is returned for a send with neither content nor
	// attachment, before any side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned by the store when a chat, message or
	// membership does not exist (or is not visible to the viewer).
	ErrNotFound = errors.New("not found")

	// ErrPersistence wraps store insert/update/delete failures. The
	// optimistic artifact is rolled back and the failure surfaces to the
	// caller; no automatic retry.
	ErrPersistence = errors.New("persistence failure")

	// ErrSubscription wraps channel setup failures. The affected view
	// degrades to last-known-good state and retries on next mount.
	ErrSubscription = errors.New("subscription failure")
)
