package node

import "errors"

// Package-level errors.
var (
	// ErrAlreadyStarted is returned when Start is called on a running node.
	ErrAlreadyStarted = errors.New("node: already started")

	// ErrNotStarted is returned when an operation requires a running node.
	ErrNotStarted = errors.New("node: not started")

	// ErrAlreadyStopped is returned when Stop is called on a stopped node.
	ErrAlreadyStopped = errors.New("node: already stopped")

	// ErrStopped is returned by calls made after Stop.
	ErrStopped = errors.New("node: stopped")

	// ErrStoreRequired is returned when Config.Store is nil.
	ErrStoreRequired = errors.New("node: store is required")

	// ErrInvalidNodeID is returned for node ID 0 and the broadcast ID.
	ErrInvalidNodeID = errors.New("node: invalid node ID")
)
