package database

import (
	"fmt"
	"slices"

	"github.com/backkem/doorlock/pkg/credential"
)

// UserDescriptor correlates a User UUID with its object offset.
type UserDescriptor struct {
	UUID   credential.UUID
	Offset uint16
}

// CredentialDescriptor correlates a credential key and owner with its object offset.
type CredentialDescriptor struct {
	UUID   credential.UUID
	Key    credential.CredentialKey
	Offset uint16
}

func (d UserDescriptor) objectOffset() uint16       { return d.Offset }
func (d CredentialDescriptor) objectOffset() uint16 { return d.Offset }

type descriptor interface {
	UserDescriptor | CredentialDescriptor
	objectOffset() uint16
}

// orderedTable is a bounded sequence of descriptors kept in ascending key order.
// Inserts shift later entries up and removals shift them down, so the
// sequence stays dense and sorted at every observable point.
type orderedTable[K any, D descriptor] struct {
	entries  []D
	capacity int
	key      func(D) K
	cmp      func(a, b K) int
}

func newUserTable(capacity int) *orderedTable[credential.UUID, UserDescriptor] {
	return &orderedTable[credential.UUID, UserDescriptor]{
		entries:  make([]UserDescriptor, 0, capacity),
		capacity: capacity,
		key:      func(d UserDescriptor) credential.UUID { return d.UUID },
		cmp: func(a, b credential.UUID) int {
			return int(a) - int(b)
		},
	}
}

func newCredentialTable(capacity int) *orderedTable[credential.CredentialKey, CredentialDescriptor] {
	return &orderedTable[credential.CredentialKey, CredentialDescriptor]{
		entries:  make([]CredentialDescriptor, 0, capacity),
		capacity: capacity,
		key:      func(d CredentialDescriptor) credential.CredentialKey { return d.Key },
		cmp:      credential.CredentialKey.Compare,
	}
}

// search returns the position of k, or the position it would be inserted at.
func (t *orderedTable[K, D]) search(k K) (int, bool) {
	return slices.BinarySearchFunc(t.entries, k, func(d D, k K) int {
		return t.cmp(t.key(d), k)
	})
}

// get returns the entry for k.
func (t *orderedTable[K, D]) get(k K) (D, bool) {
	i, ok := t.search(k)
	if !ok {
		var zero D
		return zero, false
	}
	return t.entries[i], true
}

// insert places d at its ordered position and returns that position.
func (t *orderedTable[K, D]) insert(d D) (int, error) {
	if len(t.entries) >= t.capacity {
		return 0, ErrFull
	}
	i, ok := t.search(t.key(d))
	if ok {
		return 0, ErrOccupied
	}
	t.entries = slices.Insert(t.entries, i, d)
	return i, nil
}

// removeAt deletes the entry at position i, closing the gap.
func (t *orderedTable[K, D]) removeAt(i int) D {
	d := t.entries[i]
	t.entries = slices.Delete(t.entries, i, i+1)
	return d
}

// after returns the position of the first entry with a key greater than k.
func (t *orderedTable[K, D]) after(k K) int {
	i, ok := t.search(k)
	if ok {
		i++
	}
	return i
}

func (t *orderedTable[K, D]) len() int {
	return len(t.entries)
}

func (t *orderedTable[K, D]) snapshot() []D {
	return slices.Clone(t.entries)
}

func (t *orderedTable[K, D]) restore(entries []D) {
	t.entries = entries
}

// inUse returns the set of offsets referenced by the table.
func (t *orderedTable[K, D]) inUse() map[uint16]struct{} {
	set := make(map[uint16]struct{}, len(t.entries))
	for _, d := range t.entries {
		set[d.objectOffset()] = struct{}{}
	}
	return set
}

// load replaces the entries with ds after checking order, uniqueness and offsets.
func (t *orderedTable[K, D]) load(ds []D, maxOffset int) error {
	seen := make(map[uint16]struct{}, len(ds))
	for i, d := range ds {
		if i > 0 && t.cmp(t.key(ds[i-1]), t.key(d)) >= 0 {
			return fmt.Errorf("%w: descriptor table out of order at %d", ErrIO, i)
		}
		off := d.objectOffset()
		if int(off) >= maxOffset {
			return fmt.Errorf("%w: descriptor offset %d out of range", ErrIO, off)
		}
		if _, dup := seen[off]; dup {
			return fmt.Errorf("%w: descriptor offset %d referenced twice", ErrIO, off)
		}
		seen[off] = struct{}{}
	}
	if len(ds) > t.capacity {
		t.capacity = len(ds)
	}
	t.entries = slices.Clone(ds)
	return nil
}

// allocator hands out object offsets in [0, capacity) by a bounded circular
// scan starting at head.
type allocator struct {
	head     uint16
	capacity uint16
}

// tryAllocate returns the first offset at or after head that is not in use,
// wrapping around once. It does not move head; call advance once the offset
// is committed.
func (a *allocator) tryAllocate(inUse map[uint16]struct{}) (uint16, bool) {
	if a.capacity == 0 {
		return 0, false
	}
	for i := uint16(0); i < a.capacity; i++ {
		candidate := uint16((uint32(a.head) + uint32(i)) % uint32(a.capacity))
		if _, used := inUse[candidate]; !used {
			return candidate, true
		}
	}
	return 0, false
}

// advance moves head past offset.
func (a *allocator) advance(offset uint16) {
	a.head = uint16((uint32(offset) + 1) % uint32(a.capacity))
}
