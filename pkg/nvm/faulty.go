package nvm

import (
	"fmt"
	"sync"
)

// FaultyStore wraps a Store and fails selected operations.
// It exists to exercise the error paths of code layered on a Store.
type FaultyStore struct {
	Store

	mu         sync.Mutex
	failWrite  func(id FileID) bool
	failRead   func(id FileID) bool
	writeLimit int // remaining successful writes, -1 for unlimited
}

// NewFaultyStore wraps inner. With no faults armed it behaves like inner.
func NewFaultyStore(inner Store) *FaultyStore {
	return &FaultyStore{Store: inner, writeLimit: -1}
}

// FailWrites makes every Write to an id matching pred fail. A nil pred disarms.
func (f *FaultyStore) FailWrites(pred func(id FileID) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite = pred
}

// FailReads makes every Read of an id matching pred fail. A nil pred disarms.
func (f *FaultyStore) FailReads(pred func(id FileID) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRead = pred
}

// FailAfter lets n more writes succeed, then fails every write.
// A negative n disarms.
func (f *FaultyStore) FailAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeLimit = n
}

// Reset disarms every fault.
func (f *FaultyStore) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite = nil
	f.failRead = nil
	f.writeLimit = -1
}

// Read reads through to the wrapped store unless a read fault matches.
func (f *FaultyStore) Read(id FileID) ([]byte, error) {
	f.mu.Lock()
	fail := f.failRead != nil && f.failRead(id)
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("%w: injected fault on %s", ErrReadFailed, id)
	}
	return f.Store.Read(id)
}

// Write writes through to the wrapped store unless a write fault matches.
func (f *FaultyStore) Write(id FileID, data []byte) error {
	f.mu.Lock()
	fail := f.failWrite != nil && f.failWrite(id)
	if !fail && f.writeLimit == 0 {
		fail = true
	}
	if !fail && f.writeLimit > 0 {
		f.writeLimit--
	}
	f.mu.Unlock()

	if fail {
		return fmt.Errorf("%w: injected fault on %s", ErrWriteFailed, id)
	}
	return f.Store.Write(id, data)
}

// Verify FaultyStore implements Store.
var _ Store = (*FaultyStore)(nil)
