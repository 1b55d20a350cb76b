// Package checksum folds stored users and credentials through CRC-16 so a
// controller can detect drift without reading the whole database.
//
// Each scope folds a fixed byte tuple per entity in ascending key order.
// A scope with nothing stored has checksum 0.
package checksum

import (
	"errors"
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/crc16"
	"github.com/backkem/doorlock/pkg/database"
)

// Source is the read side of the database the checksums are computed from.
type Source interface {
	NextUser(uuid credential.UUID) (credential.UUID, bool)
	GetUser(uuid credential.UUID) (credential.User, error)
	NextCredential(after credential.CredentialKey, filter database.CredentialFilter) (credential.CredentialKey, bool)
	GetCredential(key credential.CredentialKey) (credential.Credential, error)
}

var _ Source = (*database.Database)(nil)

// AllUsers returns the checksum over every user, each followed by its credentials.
func AllUsers(src Source) (uint16, error) {
	d := crc16.New()
	for uuid, ok := src.NextUser(credential.UUIDInvalid); ok; uuid, ok = src.NextUser(uuid) {
		d.WriteUint16(uint16(uuid))
		if err := foldUser(d, src, uuid); err != nil {
			return 0, err
		}
	}
	return sum(d), nil
}

// User returns the checksum of one user and its credentials. An unknown
// user has checksum 0.
func User(src Source, uuid credential.UUID) (uint16, error) {
	d := crc16.New()
	if err := foldUser(d, src, uuid); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return sum(d), nil
}

// CredentialType returns the checksum over every credential of type t.
func CredentialType(src Source, t credential.CredentialType) (uint16, error) {
	d := crc16.New()
	filter := database.CredentialFilter{Type: t}
	for key, ok := src.NextCredential(credential.CredentialKey{}, filter); ok; key, ok = src.NextCredential(key, filter) {
		c, err := src.GetCredential(key)
		if err != nil {
			return 0, fmt.Errorf("checksum: reading credential %s: %w", key, err)
		}
		d.WriteUint16(c.Slot)
		writeBlock(d, c.Data)
	}
	return sum(d), nil
}

func foldUser(d *crc16.Digest, src Source, uuid credential.UUID) error {
	u, err := src.GetUser(uuid)
	if err != nil {
		return err
	}
	_ = d.WriteByte(byte(u.Type))
	_ = d.WriteByte(boolByte(u.Active))
	_ = d.WriteByte(byte(u.CredentialRule))
	_ = d.WriteByte(byte(u.NameEncoding))
	writeBlock(d, u.Name)

	filter := database.CredentialFilter{UUID: uuid}
	for key, ok := src.NextCredential(credential.CredentialKey{}, filter); ok; key, ok = src.NextCredential(key, filter) {
		c, err := src.GetCredential(key)
		if err != nil {
			return fmt.Errorf("checksum: reading credential %s: %w", key, err)
		}
		_ = d.WriteByte(byte(c.Type))
		d.WriteUint16(c.Slot)
		writeBlock(d, c.Data)
	}
	return nil
}

// writeBlock folds a length byte followed by the bytes themselves.
func writeBlock(d *crc16.Digest, b []byte) {
	_ = d.WriteByte(byte(len(b)))
	_, _ = d.Write(b)
}

func sum(d *crc16.Digest) uint16 {
	if d.Len() == 0 {
		return 0
	}
	return d.Sum16()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
