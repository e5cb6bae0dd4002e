package domain

import "errors"

var (
	// ErrFeedClosed is returned when an operation is attempted on a feed
	// client after Disconnect. A disconnected client is terminal.
	ErrFeedClosed = errors.New("feed client is closed")

	// ErrRetriesExhausted is reported through the status channel metadata
	// when the reconnect budget runs out.
	ErrRetriesExhausted = errors.New("reconnect retries exhausted")

	// ErrNotFound is returned by caches for missing keys.
	ErrNotFound = errors.New("not found")

	// ErrLockHeld is returned when a distributed lock is already held by
	// another party.
	ErrLockHeld = errors.New("lock already held")
)
