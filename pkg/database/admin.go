package database

import "github.com/backkem/doorlock/pkg/credential"

// AdminCode returns the stored admin code. An empty code means deactivated.
func (db *Database) AdminCode() credential.AdminCode {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append(credential.AdminCode(nil), db.adminCode...)
}

// SetAdminCode replaces the admin code. An empty code deactivates it.
//
// Returns ErrIdentical if code equals the stored code.
func (db *Database) SetAdminCode(code credential.AdminCode) error {
	if len(code) > credential.AdminCodeMaxLength {
		return ErrTooLong
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if string(code) == string(db.adminCode) {
		return ErrIdentical
	}
	if err := db.writeRecord(FileAdminCode, encodeAdminRecord(code)); err != nil {
		return err
	}
	db.adminCode = append(credential.AdminCode(nil), code...)
	return nil
}
