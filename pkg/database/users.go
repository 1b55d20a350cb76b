package database

import (
	"errors"
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/nvm"
)

// GetUser returns the stored user with the given UUID.
func (db *Database) GetUser(uuid credential.UUID) (credential.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	d, ok := db.users.get(uuid)
	if !ok {
		return credential.User{}, ErrNotFound
	}
	return db.readUser(d)
}

// HasUser reports whether a user with the given UUID is stored.
func (db *Database) HasUser(uuid credential.UUID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.users.get(uuid)
	return ok
}

// NextUser returns the UUID following uuid in ascending order. Passing 0
// returns the first UUID. The second result is false at the end.
func (db *Database) NextUser(uuid credential.UUID) (credential.UUID, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	i := 0
	if uuid != credential.UUIDInvalid {
		i = db.users.after(uuid)
	}
	if i >= db.users.len() {
		return credential.UUIDInvalid, false
	}
	return db.users.entries[i].UUID, true
}

// AddUser stores a new user.
//
// Returns ErrIdentical if the same content is already stored under the UUID,
// ErrOccupied if different content is, and ErrFull if no object is free.
func (db *Database) AddUser(u credential.User) error {
	if !u.UUID.IsValid() {
		return ErrInvalidKey
	}
	if len(u.Name) > 0xFF {
		return ErrTooLong
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if d, ok := db.users.get(u.UUID); ok {
		stored, err := db.readUser(d)
		if err != nil {
			return err
		}
		if stored.SameContent(u) {
			return ErrIdentical
		}
		return ErrOccupied
	}

	if db.users.len() >= int(db.userAlloc.capacity) {
		return ErrFull
	}
	offset, ok := db.userAlloc.tryAllocate(db.users.inUse())
	if !ok {
		return ErrFull
	}

	if err := db.writeUserObject(offset, u); err != nil {
		return err
	}

	prevTable := db.users.snapshot()
	prevHead := db.userAlloc.head

	if _, err := db.users.insert(UserDescriptor{UUID: u.UUID, Offset: offset}); err != nil {
		return err
	}
	db.userAlloc.advance(offset)

	if err := db.writeUserTable(); err != nil {
		db.users.restore(prevTable)
		db.userAlloc.head = prevHead
		return err
	}
	if err := db.writeUserArea(); err != nil {
		db.users.restore(prevTable)
		db.userAlloc.head = prevHead
		db.rewriteUserTable()
		return err
	}

	db.log.Debugf("added user %d at offset %d", u.UUID, offset)
	return nil
}

// ModifyUser replaces the content of an existing user in place.
//
// Returns ErrNotFound if no user has the UUID and ErrIdentical if the content
// would not change.
func (db *Database) ModifyUser(u credential.User) error {
	if !u.UUID.IsValid() {
		return ErrInvalidKey
	}
	if len(u.Name) > 0xFF {
		return ErrTooLong
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	d, ok := db.users.get(u.UUID)
	if !ok {
		return ErrNotFound
	}
	stored, err := db.readUser(d)
	if err != nil {
		return err
	}
	if stored.SameContent(u) {
		return ErrIdentical
	}

	if err := db.writeUserObject(d.Offset, u); err != nil {
		// Put the previous object back so the record and name agree.
		if rerr := db.writeUserObject(d.Offset, stored); rerr != nil {
			db.log.Errorf("restoring user %d failed: %v", u.UUID, rerr)
		}
		return err
	}

	db.log.Debugf("modified user %d", u.UUID)
	return nil
}

// DeleteUser removes a user. Credentials owned by the user are not touched;
// callers remove them with DeleteCredential.
func (db *Database) DeleteUser(uuid credential.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	i, ok := db.users.search(uuid)
	if !ok {
		return ErrNotFound
	}

	prevTable := db.users.snapshot()
	d := db.users.removeAt(i)

	if err := db.writeUserTable(); err != nil {
		db.users.restore(prevTable)
		return err
	}
	if err := db.writeUserArea(); err != nil {
		db.users.restore(prevTable)
		db.rewriteUserTable()
		return err
	}

	db.log.Debugf("deleted user %d, offset %d free", uuid, d.Offset)
	return nil
}

// rewriteUserTable persists the in-memory table after a rollback.
func (db *Database) rewriteUserTable() {
	if err := db.writeUserTable(); err != nil {
		db.log.Errorf("rolling back user descriptor table: %v", err)
	}
}

func (db *Database) writeUserObject(offset uint16, u credential.User) error {
	if len(u.Name) > 0 {
		if err := db.writeRecord(FileUserName(offset), u.Name); err != nil {
			return err
		}
	}
	return db.writeRecord(FileUser(offset), encodeUserRecord(u))
}

func (db *Database) readUser(d UserDescriptor) (credential.User, error) {
	raw, err := db.readRecord(FileUser(d.Offset))
	if err != nil {
		return credential.User{}, asCorrupt(err)
	}
	u, nameLen, err := decodeUserRecord(raw)
	if err != nil {
		return credential.User{}, err
	}
	if u.UUID != d.UUID {
		return credential.User{}, fmt.Errorf("%w: user object %d holds UUID %d, want %d",
			ErrIO, d.Offset, u.UUID, d.UUID)
	}
	if nameLen > 0 {
		name, err := db.readRecord(FileUserName(d.Offset))
		if err != nil {
			return credential.User{}, asCorrupt(err)
		}
		if len(name) != nameLen {
			return credential.User{}, fmt.Errorf("%w: user %d name is %d bytes, record says %d",
				ErrIO, d.UUID, len(name), nameLen)
		}
		u.Name = name
	}
	return u, nil
}

// asCorrupt turns a missing record behind a live descriptor into ErrIO.
func asCorrupt(err error) error {
	if errors.Is(err, nvm.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return err
}
