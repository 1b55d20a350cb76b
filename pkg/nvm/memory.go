package nvm

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store.
// Useful for testing and development. Data is lost when the process exits.
//
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[FileID][]byte
	writes  int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[FileID][]byte),
	}
}

// Read returns a copy of the record stored under id.
func (m *MemoryStore) Read(id FileID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(data), nil
}

// Write stores a copy of data under id.
func (m *MemoryStore) Write(id FileID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[id] = append([]byte{}, data...)
	m.writes++
	return nil
}

// Writes returns the number of successful writes since creation.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// IDs returns every stored id in ascending order.
func (m *MemoryStore) IDs() []FileID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]FileID, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns a deep copy of every record.
func (m *MemoryStore) Snapshot() map[FileID][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[FileID][]byte, len(m.objects))
	for id, data := range m.objects {
		out[id] = bytes.Clone(data)
	}
	return out
}

// Clear removes all records.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = make(map[FileID][]byte)
}

// Verify MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
