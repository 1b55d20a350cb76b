package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/nvm"
	"github.com/pion/logging"
)

// Default capacities.
const (
	DefaultMaxUsers       = 20
	DefaultMaxCredentials = 50
)

// Config configures a Database.
type Config struct {
	// Store is the non-volatile backing store. Required.
	Store nvm.Store

	// MaxUsers is the number of user objects. Clamped to [1, MaxObjects].
	MaxUsers uint16

	// MaxCredentials is the number of credential objects. Clamped to [1, MaxObjects].
	MaxCredentials uint16

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns a configuration with default capacities and no store.
func DefaultConfig() Config {
	return Config{
		MaxUsers:       DefaultMaxUsers,
		MaxCredentials: DefaultMaxCredentials,
	}
}

// Database is the persisted User/Credential object store.
//
// Thread Safety: All methods are safe for concurrent use. Each call runs to
// completion under the database lock.
type Database struct {
	mu    sync.RWMutex
	store nvm.Store
	log   logging.LeveledLogger

	users       *orderedTable[credential.UUID, UserDescriptor]
	credentials *orderedTable[credential.CredentialKey, CredentialDescriptor]
	userAlloc   allocator
	credAlloc   allocator
	adminCode   credential.AdminCode
}

// Open loads the database from cfg.Store, formatting the store if it holds
// no database yet.
func Open(cfg Config) (*Database, error) {
	if cfg.Store == nil {
		return nil, errors.New("database: store is required")
	}
	cfg.MaxUsers = clampCapacity(cfg.MaxUsers, DefaultMaxUsers)
	cfg.MaxCredentials = clampCapacity(cfg.MaxCredentials, DefaultMaxCredentials)

	factory := cfg.LoggerFactory
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}

	db := &Database{
		store:       cfg.Store,
		log:         factory.NewLogger("database"),
		users:       newUserTable(int(cfg.MaxUsers)),
		credentials: newCredentialTable(int(cfg.MaxCredentials)),
		userAlloc:   allocator{capacity: cfg.MaxUsers},
		credAlloc:   allocator{capacity: cfg.MaxCredentials},
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.load(); err != nil {
		if !errors.Is(err, nvm.ErrNotFound) {
			return nil, err
		}
		db.log.Info("no database found, formatting")
		if err := db.format(); err != nil {
			return nil, err
		}
	}

	db.log.Infof("opened: %d users, %d credentials", db.users.len(), db.credentials.len())
	return db, nil
}

func clampCapacity(v, def uint16) uint16 {
	if v == 0 {
		return def
	}
	if v > MaxObjects {
		return MaxObjects
	}
	return v
}

// load reads area records and descriptor tables. Returns nvm.ErrNotFound if
// the store was never formatted.
func (db *Database) load() error {
	userArea, err := db.readArea(FileUserArea)
	if err != nil {
		return err
	}
	credArea, err := db.readArea(FileCredentialArea)
	if err != nil {
		return err
	}

	raw, err := db.readRecord(FileUserDescriptors)
	if err != nil {
		return err
	}
	uds, err := decodeUserDescriptors(raw)
	if err != nil {
		return err
	}
	if err := db.users.load(uds, MaxObjects); err != nil {
		return err
	}

	raw, err = db.readRecord(FileCredentialDescriptors)
	if err != nil {
		return err
	}
	cds, err := decodeCredentialDescriptors(raw)
	if err != nil {
		return err
	}
	if err := db.credentials.load(cds, MaxObjects); err != nil {
		return err
	}

	raw, err = db.readRecord(FileAdminCode)
	switch {
	case errors.Is(err, nvm.ErrNotFound):
		db.adminCode = nil
	case err != nil:
		return err
	default:
		if db.adminCode, err = decodeAdminRecord(raw); err != nil {
			return err
		}
	}

	db.userAlloc.head = userArea.head
	db.credAlloc.head = credArea.head

	// The descriptor table is authoritative; repair a stale count.
	if int(userArea.count) != db.users.len() {
		db.log.Warnf("user count %d disagrees with descriptor table (%d), repairing",
			userArea.count, db.users.len())
		if err := db.writeUserArea(); err != nil {
			return err
		}
	}
	if int(credArea.count) != db.credentials.len() {
		db.log.Warnf("credential count %d disagrees with descriptor table (%d), repairing",
			credArea.count, db.credentials.len())
		if err := db.writeCredentialArea(); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) readArea(id nvm.FileID) (areaRecord, error) {
	raw, err := db.readRecord(id)
	if err != nil {
		return areaRecord{}, err
	}
	return decodeAreaRecord(raw)
}

// readRecord reads id. nvm.ErrNotFound is returned as is; every other
// failure is wrapped in ErrIO.
func (db *Database) readRecord(id nvm.FileID) ([]byte, error) {
	raw, err := db.store.Read(id)
	if err == nil {
		return raw, nil
	}
	if errors.Is(err, nvm.ErrNotFound) {
		return nil, err
	}
	db.log.Warnf("read %s failed: %v", id, err)
	return nil, fmt.Errorf("%w: %w", ErrIO, err)
}

func (db *Database) writeRecord(id nvm.FileID, data []byte) error {
	if err := db.store.Write(id, data); err != nil {
		db.log.Warnf("write %s failed: %v", id, err)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (db *Database) writeUserArea() error {
	rec := areaRecord{count: uint16(db.users.len()), head: db.userAlloc.head}
	return db.writeRecord(FileUserArea, rec.encode())
}

func (db *Database) writeCredentialArea() error {
	rec := areaRecord{count: uint16(db.credentials.len()), head: db.credAlloc.head}
	return db.writeRecord(FileCredentialArea, rec.encode())
}

func (db *Database) writeUserTable() error {
	return db.writeRecord(FileUserDescriptors, encodeUserDescriptors(db.users.entries))
}

func (db *Database) writeCredentialTable() error {
	return db.writeRecord(FileCredentialDescriptors, encodeCredentialDescriptors(db.credentials.entries))
}

// format writes an empty database and resets every in-memory counter and cursor.
func (db *Database) format() error {
	writes := []struct {
		id   nvm.FileID
		data []byte
	}{
		{FileUserDescriptors, []byte{}},
		{FileCredentialDescriptors, []byte{}},
		{FileUserArea, areaRecord{}.encode()},
		{FileCredentialArea, areaRecord{}.encode()},
		{FileAdminCode, encodeAdminRecord(nil)},
	}
	for _, w := range writes {
		if err := db.writeRecord(w.id, w.data); err != nil {
			return err
		}
	}

	db.users.restore(db.users.entries[:0])
	db.credentials.restore(db.credentials.entries[:0])
	db.userAlloc.head = 0
	db.credAlloc.head = 0
	db.adminCode = nil
	return nil
}

// Reset erases every User, Credential and the Admin Code.
//
// If a write fails part way, the in-memory state is reloaded from whatever
// reached the store and ErrIO is returned.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.format(); err != nil {
		if lerr := db.load(); lerr != nil {
			db.log.Errorf("reload after failed reset: %v", lerr)
		}
		return err
	}
	db.log.Info("database reset")
	return nil
}

// UserCount returns the number of stored users.
func (db *Database) UserCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.users.len()
}

// CredentialCount returns the number of stored credentials.
func (db *Database) CredentialCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.credentials.len()
}

// UserCapacity returns the number of user objects.
func (db *Database) UserCapacity() int {
	return int(db.userAlloc.capacity)
}

// CredentialCapacity returns the number of credential objects.
func (db *Database) CredentialCapacity() int {
	return int(db.credAlloc.capacity)
}

// UserDescriptors returns a copy of the user descriptor table in key order.
func (db *Database) UserDescriptors() []UserDescriptor {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.users.snapshot()
}

// CredentialDescriptors returns a copy of the credential descriptor table in key order.
func (db *Database) CredentialDescriptors() []CredentialDescriptor {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.credentials.snapshot()
}

// String returns a summary of the database.
func (db *Database) String() string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fmt.Sprintf("Database{Users=%d/%d, Credentials=%d/%d}",
		db.users.len(), db.userAlloc.capacity, db.credentials.len(), db.credAlloc.capacity)
}
