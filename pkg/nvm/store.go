// Package nvm provides the non-volatile object primitives the credential
// database is persisted through.
//
// A Store is a flat map from FileID to an opaque record. Records are written
// whole; there is no partial update and no transaction spanning two records.
// Callers order their writes so a failure between two writes leaves a state
// they can recover from.
package nvm

import (
	"errors"
	"fmt"
)

// Store errors.
var (
	// ErrNotFound is returned when no record exists for a FileID.
	ErrNotFound = errors.New("nvm: object not found")
	// ErrWriteFailed is returned when a record could not be written.
	ErrWriteFailed = errors.New("nvm: write failed")
	// ErrReadFailed is returned when a record exists but could not be read.
	ErrReadFailed = errors.New("nvm: read failed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("nvm: store closed")
)

// FileID addresses one record.
type FileID uint32

// String returns the id in hex.
func (id FileID) String() string {
	return fmt.Sprintf("0x%05X", uint32(id))
}

// Store abstracts the raw non-volatile memory.
//
// Read returns a copy of the record or ErrNotFound.
// Write replaces the record atomically.
type Store interface {
	Read(id FileID) ([]byte, error)
	Write(id FileID, data []byte) error
}
