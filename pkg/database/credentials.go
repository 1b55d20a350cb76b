package database

import (
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
)

// CredentialFilter narrows NextCredential. Zero fields match anything.
type CredentialFilter struct {
	UUID credential.UUID
	Type credential.CredentialType
}

func (f CredentialFilter) matches(d CredentialDescriptor) bool {
	if f.UUID != credential.UUIDInvalid && d.UUID != f.UUID {
		return false
	}
	if f.Type != credential.CredentialTypeNone && d.Key.Type != f.Type {
		return false
	}
	return true
}

func validCredentialKey(k credential.CredentialKey) bool {
	return k.Type.IsValid() && k.Slot != 0
}

// GetCredential returns the stored credential with the given key.
func (db *Database) GetCredential(key credential.CredentialKey) (credential.Credential, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	d, ok := db.credentials.get(key)
	if !ok {
		return credential.Credential{}, ErrNotFound
	}
	return db.readCredential(d)
}

// CredentialOwner returns the UUID owning key without reading the object.
func (db *Database) CredentialOwner(key credential.CredentialKey) (credential.UUID, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	d, ok := db.credentials.get(key)
	if !ok {
		return credential.UUIDInvalid, false
	}
	return d.UUID, true
}

// NextCredential returns the first key after `after` in (Type, Slot) order
// that matches filter. A zero `after` starts from the beginning.
func (db *Database) NextCredential(after credential.CredentialKey, filter CredentialFilter) (credential.CredentialKey, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	i := 0
	if !after.IsZero() {
		i = db.credentials.after(after)
	}
	for ; i < db.credentials.len(); i++ {
		d := db.credentials.entries[i]
		if filter.matches(d) {
			return d.Key, true
		}
	}
	return credential.CredentialKey{}, false
}

// CountCredentials returns how many stored credentials match filter.
func (db *Database) CountCredentials(filter CredentialFilter) int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	n := 0
	for _, d := range db.credentials.entries {
		if filter.matches(d) {
			n++
		}
	}
	return n
}

// AddCredential stores a new credential.
//
// The owning user is not checked here; that is a validation concern.
// Returns ErrIdentical, ErrOccupied or ErrFull like AddUser.
func (db *Database) AddCredential(c credential.Credential) error {
	if !validCredentialKey(c.Key()) || !c.UUID.IsValid() {
		return ErrInvalidKey
	}
	if len(c.Data) > 0xFF {
		return ErrTooLong
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if d, ok := db.credentials.get(c.Key()); ok {
		stored, err := db.readCredential(d)
		if err != nil {
			return err
		}
		if stored.SameContent(c) {
			return ErrIdentical
		}
		return ErrOccupied
	}

	if db.credentials.len() >= int(db.credAlloc.capacity) {
		return ErrFull
	}
	offset, ok := db.credAlloc.tryAllocate(db.credentials.inUse())
	if !ok {
		return ErrFull
	}

	if err := db.writeCredentialObject(offset, c); err != nil {
		return err
	}

	prevTable := db.credentials.snapshot()
	prevHead := db.credAlloc.head

	d := CredentialDescriptor{UUID: c.UUID, Key: c.Key(), Offset: offset}
	if _, err := db.credentials.insert(d); err != nil {
		return err
	}
	db.credAlloc.advance(offset)

	if err := db.writeCredentialTable(); err != nil {
		db.credentials.restore(prevTable)
		db.credAlloc.head = prevHead
		return err
	}
	if err := db.writeCredentialArea(); err != nil {
		db.credentials.restore(prevTable)
		db.credAlloc.head = prevHead
		db.rewriteCredentialTable()
		return err
	}

	db.log.Debugf("added credential %s for user %d at offset %d", c.Key(), c.UUID, offset)
	return nil
}

// ModifyCredential replaces the data of an existing credential in place.
//
// Returns ErrNotFound if the key is free, ErrReassignRejected if c names a
// different owner than the stored one and ErrIdentical if nothing would change.
func (db *Database) ModifyCredential(c credential.Credential) error {
	if !validCredentialKey(c.Key()) {
		return ErrInvalidKey
	}
	if len(c.Data) > 0xFF {
		return ErrTooLong
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	d, ok := db.credentials.get(c.Key())
	if !ok {
		return ErrNotFound
	}
	if d.UUID != c.UUID {
		return ErrReassignRejected
	}
	stored, err := db.readCredential(d)
	if err != nil {
		return err
	}
	if stored.SameContent(c) {
		return ErrIdentical
	}

	if err := db.writeCredentialObject(d.Offset, c); err != nil {
		if rerr := db.writeCredentialObject(d.Offset, stored); rerr != nil {
			db.log.Errorf("restoring credential %s failed: %v", c.Key(), rerr)
		}
		return err
	}

	db.log.Debugf("modified credential %s", c.Key())
	return nil
}

// MoveCredential re-slots the credential at src to dstSlot (same type) and
// hands it to dstUUID. The object keeps its offset.
//
// Returns ErrNotFound if src is free and ErrOccupied if the destination key
// holds another credential. On any failure nothing changes.
func (db *Database) MoveCredential(src credential.CredentialKey, dstUUID credential.UUID, dstSlot uint16, modifier credential.Modifier) error {
	dst := credential.CredentialKey{Type: src.Type, Slot: dstSlot}
	if !validCredentialKey(src) || !validCredentialKey(dst) || !dstUUID.IsValid() {
		return ErrInvalidKey
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	i, ok := db.credentials.search(src)
	if !ok {
		return ErrNotFound
	}
	d := db.credentials.entries[i]
	if dst != src {
		if _, taken := db.credentials.get(dst); taken {
			return ErrOccupied
		}
	} else if d.UUID == dstUUID {
		return ErrIdentical
	}

	stored, err := db.readCredential(d)
	if err != nil {
		return err
	}
	moved := stored.Clone()
	moved.UUID = dstUUID
	moved.Slot = dstSlot
	moved.Modifier = modifier

	if err := db.writeRecord(FileCredential(d.Offset), encodeCredentialRecord(moved)); err != nil {
		return err
	}

	prevTable := db.credentials.snapshot()
	db.credentials.removeAt(i)
	if _, err := db.credentials.insert(CredentialDescriptor{UUID: dstUUID, Key: dst, Offset: d.Offset}); err != nil {
		db.credentials.restore(prevTable)
		db.restoreCredentialRecord(d.Offset, stored)
		return err
	}

	if err := db.writeCredentialTable(); err != nil {
		db.credentials.restore(prevTable)
		db.restoreCredentialRecord(d.Offset, stored)
		return err
	}

	db.log.Debugf("moved credential %s (user %d) to %s (user %d)", src, d.UUID, dst, dstUUID)
	return nil
}

// DeleteCredential removes the credential with the given key.
func (db *Database) DeleteCredential(key credential.CredentialKey) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	i, ok := db.credentials.search(key)
	if !ok {
		return ErrNotFound
	}

	prevTable := db.credentials.snapshot()
	d := db.credentials.removeAt(i)

	if err := db.writeCredentialTable(); err != nil {
		db.credentials.restore(prevTable)
		return err
	}
	if err := db.writeCredentialArea(); err != nil {
		db.credentials.restore(prevTable)
		db.rewriteCredentialTable()
		return err
	}

	db.log.Debugf("deleted credential %s, offset %d free", key, d.Offset)
	return nil
}

func (db *Database) rewriteCredentialTable() {
	if err := db.writeCredentialTable(); err != nil {
		db.log.Errorf("rolling back credential descriptor table: %v", err)
	}
}

func (db *Database) restoreCredentialRecord(offset uint16, c credential.Credential) {
	if err := db.writeRecord(FileCredential(offset), encodeCredentialRecord(c)); err != nil {
		db.log.Errorf("restoring credential record at offset %d: %v", offset, err)
	}
}

func (db *Database) writeCredentialObject(offset uint16, c credential.Credential) error {
	if len(c.Data) > 0 {
		if err := db.writeRecord(FileCredentialData(offset), c.Data); err != nil {
			return err
		}
	}
	return db.writeRecord(FileCredential(offset), encodeCredentialRecord(c))
}

func (db *Database) readCredential(d CredentialDescriptor) (credential.Credential, error) {
	raw, err := db.readRecord(FileCredential(d.Offset))
	if err != nil {
		return credential.Credential{}, asCorrupt(err)
	}
	c, dataLen, err := decodeCredentialRecord(raw)
	if err != nil {
		return credential.Credential{}, err
	}
	if c.Key() != d.Key || c.UUID != d.UUID {
		return credential.Credential{}, fmt.Errorf("%w: credential object %d holds %s/user %d, want %s/user %d",
			ErrIO, d.Offset, c.Key(), c.UUID, d.Key, d.UUID)
	}
	if dataLen > 0 {
		data, err := db.readRecord(FileCredentialData(d.Offset))
		if err != nil {
			return credential.Credential{}, asCorrupt(err)
		}
		if len(data) != dataLen {
			return credential.Credential{}, fmt.Errorf("%w: credential %s data is %d bytes, record says %d",
				ErrIO, d.Key, len(data), dataLen)
		}
		c.Data = data
	}
	return c, nil
}
