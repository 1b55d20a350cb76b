package credential

import (
	"bytes"
	"fmt"
)

// Modifier identifies who last changed an entry.
type Modifier struct {
	Type ModifierType
	Node uint16
}

// User is a person or role known to the lock.
type User struct {
	UUID            UUID
	Type            UserType
	Active          bool
	CredentialRule  CredentialRule
	ExpiringMinutes uint16
	NameEncoding    NameEncoding
	Name            []byte
	Modifier        Modifier
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	c := u
	if u.Name != nil {
		c.Name = bytes.Clone(u.Name)
	}
	return c
}

// SameContent reports whether u and other carry identical stored content.
// The modifier is bookkeeping and does not take part in the comparison.
func (u User) SameContent(other User) bool {
	return u.UUID == other.UUID &&
		u.Type == other.Type &&
		u.Active == other.Active &&
		u.CredentialRule == other.CredentialRule &&
		u.ExpiringMinutes == other.ExpiringMinutes &&
		u.NameEncoding == other.NameEncoding &&
		bytes.Equal(u.Name, other.Name)
}

// String returns a summary of the user.
func (u User) String() string {
	return fmt.Sprintf("User{UUID=%d, Type=%s, Active=%t, Rule=%s, Name=%q}",
		u.UUID, u.Type, u.Active, u.CredentialRule, u.Name)
}
