package database

import "errors"

// Database errors.
var (
	// ErrNotFound is returned when the requested entry is not stored.
	ErrNotFound = errors.New("database: not found")

	// ErrFull is returned when no free object offset is left in the area.
	ErrFull = errors.New("database: full")

	// ErrOccupied is returned when adding under a key that holds different content.
	ErrOccupied = errors.New("database: key occupied")

	// ErrIdentical is returned when an add or modify would not change stored content.
	ErrIdentical = errors.New("database: identical to stored entry")

	// ErrReassignRejected is returned when a modify tries to change a credential's owner.
	ErrReassignRejected = errors.New("database: credential owner change requires a move")

	// ErrIO is returned when the non-volatile store fails or holds a corrupt record.
	ErrIO = errors.New("database: storage error")

	// ErrInvalidKey is returned for a zero UUID, unknown credential type or zero slot.
	ErrInvalidKey = errors.New("database: invalid key")

	// ErrTooLong is returned when a name or credential data exceeds the record size.
	ErrTooLong = errors.New("database: payload too long")
)
