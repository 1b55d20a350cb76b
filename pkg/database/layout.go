package database

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/nvm"
)

// Record addresses in the non-volatile store.
const (
	FileUserArea              nvm.FileID = 0x0100
	FileCredentialArea        nvm.FileID = 0x0101
	FileAdminCode             nvm.FileID = 0x0102
	FileUserDescriptors       nvm.FileID = 0x0110
	FileCredentialDescriptors nvm.FileID = 0x0111

	fileUserBase           nvm.FileID = 0x1000
	fileUserNameBase       nvm.FileID = 0x2000
	fileCredentialBase     nvm.FileID = 0x3000
	fileCredentialDataBase nvm.FileID = 0x4000
)

// MaxObjects is the size of every object address range.
const MaxObjects = 0x1000

// Record sizes.
const (
	areaRecordSize           = 4
	adminRecordSize          = 1 + credential.AdminCodeMaxLength
	userRecordSize           = 13
	credentialRecordSize     = 9
	userDescriptorSize       = 4
	credentialDescriptorSize = 7
)

// FileUser returns the metadata record id of the user object at offset.
func FileUser(offset uint16) nvm.FileID { return fileUserBase + nvm.FileID(offset) }

// FileUserName returns the name record id of the user object at offset.
func FileUserName(offset uint16) nvm.FileID { return fileUserNameBase + nvm.FileID(offset) }

// FileCredential returns the metadata record id of the credential object at offset.
func FileCredential(offset uint16) nvm.FileID { return fileCredentialBase + nvm.FileID(offset) }

// FileCredentialData returns the data record id of the credential object at offset.
func FileCredentialData(offset uint16) nvm.FileID {
	return fileCredentialDataBase + nvm.FileID(offset)
}

// areaRecord is the persisted count and allocation cursor of one area.
type areaRecord struct {
	count uint16
	head  uint16
}

func (a areaRecord) encode() []byte {
	b := make([]byte, areaRecordSize)
	binary.BigEndian.PutUint16(b[0:], a.count)
	binary.BigEndian.PutUint16(b[2:], a.head)
	return b
}

func decodeAreaRecord(b []byte) (areaRecord, error) {
	if len(b) != areaRecordSize {
		return areaRecord{}, fmt.Errorf("%w: area record is %d bytes", ErrIO, len(b))
	}
	return areaRecord{
		count: binary.BigEndian.Uint16(b[0:]),
		head:  binary.BigEndian.Uint16(b[2:]),
	}, nil
}

// userRecord layout:
//
//	uuid(2) type(1) active(1) rule(1) expiring(2) encoding(1) nameLen(1) modType(1) modNode(2)
func encodeUserRecord(u credential.User) []byte {
	b := make([]byte, userRecordSize)
	binary.BigEndian.PutUint16(b[0:], uint16(u.UUID))
	b[2] = uint8(u.Type)
	if u.Active {
		b[3] = 1
	}
	b[4] = uint8(u.CredentialRule)
	binary.BigEndian.PutUint16(b[5:], u.ExpiringMinutes)
	b[7] = uint8(u.NameEncoding)
	b[8] = uint8(len(u.Name))
	b[9] = uint8(u.Modifier.Type)
	binary.BigEndian.PutUint16(b[10:], u.Modifier.Node)
	return b
}

// decodeUserRecord returns the user without its name and the stored name length.
func decodeUserRecord(b []byte) (credential.User, int, error) {
	if len(b) != userRecordSize {
		return credential.User{}, 0, fmt.Errorf("%w: user record is %d bytes", ErrIO, len(b))
	}
	u := credential.User{
		UUID:            credential.UUID(binary.BigEndian.Uint16(b[0:])),
		Type:            credential.UserType(b[2]),
		Active:          b[3] != 0,
		CredentialRule:  credential.CredentialRule(b[4]),
		ExpiringMinutes: binary.BigEndian.Uint16(b[5:]),
		NameEncoding:    credential.NameEncoding(b[7]),
		Modifier: credential.Modifier{
			Type: credential.ModifierType(b[9]),
			Node: binary.BigEndian.Uint16(b[10:]),
		},
	}
	return u, int(b[8]), nil
}

// credentialRecord layout:
//
//	uuid(2) type(1) slot(2) len(1) modType(1) modNode(2)
func encodeCredentialRecord(c credential.Credential) []byte {
	b := make([]byte, credentialRecordSize)
	binary.BigEndian.PutUint16(b[0:], uint16(c.UUID))
	b[2] = uint8(c.Type)
	binary.BigEndian.PutUint16(b[3:], c.Slot)
	b[5] = uint8(len(c.Data))
	b[6] = uint8(c.Modifier.Type)
	binary.BigEndian.PutUint16(b[7:], c.Modifier.Node)
	return b
}

func decodeCredentialRecord(b []byte) (credential.Credential, int, error) {
	if len(b) != credentialRecordSize {
		return credential.Credential{}, 0, fmt.Errorf("%w: credential record is %d bytes", ErrIO, len(b))
	}
	c := credential.Credential{
		UUID: credential.UUID(binary.BigEndian.Uint16(b[0:])),
		Type: credential.CredentialType(b[2]),
		Slot: binary.BigEndian.Uint16(b[3:]),
		Modifier: credential.Modifier{
			Type: credential.ModifierType(b[6]),
			Node: binary.BigEndian.Uint16(b[7:]),
		},
	}
	return c, int(b[5]), nil
}

func encodeAdminRecord(code credential.AdminCode) []byte {
	b := make([]byte, adminRecordSize)
	b[0] = uint8(len(code))
	copy(b[1:], code)
	return b
}

func decodeAdminRecord(b []byte) (credential.AdminCode, error) {
	if len(b) != adminRecordSize || int(b[0]) > credential.AdminCodeMaxLength {
		return nil, fmt.Errorf("%w: malformed admin code record", ErrIO)
	}
	n := int(b[0])
	if n == 0 {
		return nil, nil
	}
	return credential.AdminCode(append([]byte{}, b[1:1+n]...)), nil
}

func encodeUserDescriptors(ds []UserDescriptor) []byte {
	b := make([]byte, 0, len(ds)*userDescriptorSize)
	for _, d := range ds {
		b = binary.BigEndian.AppendUint16(b, uint16(d.UUID))
		b = binary.BigEndian.AppendUint16(b, d.Offset)
	}
	return b
}

func decodeUserDescriptors(b []byte) ([]UserDescriptor, error) {
	if len(b)%userDescriptorSize != 0 {
		return nil, fmt.Errorf("%w: user descriptor table is %d bytes", ErrIO, len(b))
	}
	ds := make([]UserDescriptor, 0, len(b)/userDescriptorSize)
	for i := 0; i < len(b); i += userDescriptorSize {
		ds = append(ds, UserDescriptor{
			UUID:   credential.UUID(binary.BigEndian.Uint16(b[i:])),
			Offset: binary.BigEndian.Uint16(b[i+2:]),
		})
	}
	return ds, nil
}

func encodeCredentialDescriptors(ds []CredentialDescriptor) []byte {
	b := make([]byte, 0, len(ds)*credentialDescriptorSize)
	for _, d := range ds {
		b = binary.BigEndian.AppendUint16(b, uint16(d.UUID))
		b = append(b, uint8(d.Key.Type))
		b = binary.BigEndian.AppendUint16(b, d.Key.Slot)
		b = binary.BigEndian.AppendUint16(b, d.Offset)
	}
	return b
}

func decodeCredentialDescriptors(b []byte) ([]CredentialDescriptor, error) {
	if len(b)%credentialDescriptorSize != 0 {
		return nil, fmt.Errorf("%w: credential descriptor table is %d bytes", ErrIO, len(b))
	}
	ds := make([]CredentialDescriptor, 0, len(b)/credentialDescriptorSize)
	for i := 0; i < len(b); i += credentialDescriptorSize {
		ds = append(ds, CredentialDescriptor{
			UUID: credential.UUID(binary.BigEndian.Uint16(b[i:])),
			Key: credential.CredentialKey{
				Type: credential.CredentialType(b[i+2]),
				Slot: binary.BigEndian.Uint16(b[i+3:]),
			},
			Offset: binary.BigEndian.Uint16(b[i+5:]),
		})
	}
	return ds, nil
}
