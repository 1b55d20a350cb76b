package credential

import (
	"bytes"
	"fmt"
)

// CredentialKey is the identity of a Credential on the node.
type CredentialKey struct {
	Type CredentialType
	Slot uint16
}

// IsZero reports whether the key is the "start of iteration" key.
func (k CredentialKey) IsZero() bool {
	return k.Type == CredentialTypeNone && k.Slot == 0
}

// Compare orders keys by type, then slot.
func (k CredentialKey) Compare(other CredentialKey) int {
	switch {
	case k.Type < other.Type:
		return -1
	case k.Type > other.Type:
		return 1
	case k.Slot < other.Slot:
		return -1
	case k.Slot > other.Slot:
		return 1
	default:
		return 0
	}
}

// String returns the key as "Type/slot".
func (k CredentialKey) String() string {
	return fmt.Sprintf("%s/%d", k.Type, k.Slot)
}

// Credential is an access secret owned by a User.
type Credential struct {
	UUID     UUID
	Type     CredentialType
	Slot     uint16
	Data     []byte
	Modifier Modifier
}

// Key returns the (type, slot) identity of the credential.
func (c Credential) Key() CredentialKey {
	return CredentialKey{Type: c.Type, Slot: c.Slot}
}

// Clone returns a deep copy of the credential.
func (c Credential) Clone() Credential {
	out := c
	if c.Data != nil {
		out.Data = bytes.Clone(c.Data)
	}
	return out
}

// SameContent reports whether c and other carry identical stored content.
func (c Credential) SameContent(other Credential) bool {
	return c.UUID == other.UUID &&
		c.Type == other.Type &&
		c.Slot == other.Slot &&
		bytes.Equal(c.Data, other.Data)
}

// SameSecret reports whether c and other hold the same secret of the same type,
// regardless of where either is stored.
func (c Credential) SameSecret(other Credential) bool {
	return c.Type == other.Type && bytes.Equal(c.Data, other.Data)
}

// String returns a summary of the credential. The secret is not printed.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{UUID=%d, Key=%s, Len=%d}", c.UUID, c.Key(), len(c.Data))
}

// Admin code length bounds. A zero length means the code is deactivated.
const (
	AdminCodeMinLength = 4
	AdminCodeMaxLength = 10
)

// AdminCode is the node-level administration PIN.
type AdminCode []byte

// Active reports whether an admin code is set.
func (a AdminCode) Active() bool {
	return len(a) > 0
}
