package credential

import "slices"

// TypeCapabilities bounds one credential type on the node.
type TypeCapabilities struct {
	Type CredentialType

	// Slots is the highest usable slot number. Slots are 1-based.
	Slots uint16

	// MinLength and MaxLength bound the credential data length in bytes.
	MinLength uint8
	MaxLength uint8

	// LearnSupported reports whether the type can be enrolled with Credential Learn.
	LearnSupported bool
	// LearnTimeout is the recommended learn step timeout in seconds.
	LearnTimeout uint8
	// LearnSteps is the number of sensor reads a learn takes.
	LearnSteps uint8

	// ReadBack reports whether stored data may be returned in reports.
	ReadBack bool

	// MaxHashLength is advertised in capability reports; 0 means no hashing.
	MaxHashLength uint8
}

// Capabilities describes what the node supports. It is the single source of
// every configured limit the validator checks against.
type Capabilities struct {
	MaxUsers        uint16
	MaxNameLength   uint8
	UserTypes       []UserType
	CredentialRules []CredentialRule

	AllUsersChecksum   bool
	UserChecksum       bool
	CredentialChecksum bool

	AdminCode             bool
	AdminCodeDeactivation bool

	// Credentials is kept sorted by type.
	Credentials []TypeCapabilities

	// MaxCredentials caps stored credentials of all types together.
	// Zero means the sum of all per-type slot counts.
	MaxCredentials uint16
}

// DefaultCapabilities returns a PIN/RFID/fingerprint lock profile.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		MaxUsers:              20,
		MaxNameLength:         16,
		UserTypes:             slices.Clone(AllUserTypes),
		CredentialRules:       []CredentialRule{CredentialRuleSingle, CredentialRuleDual},
		AllUsersChecksum:      true,
		UserChecksum:          true,
		CredentialChecksum:    true,
		AdminCode:             true,
		AdminCodeDeactivation: true,
		Credentials: []TypeCapabilities{
			{Type: CredentialTypePINCode, Slots: 20, MinLength: 4, MaxLength: 10, ReadBack: true},
			{Type: CredentialTypePassword, Slots: 10, MinLength: 4, MaxLength: 40, ReadBack: true},
			{Type: CredentialTypeRFIDCode, Slots: 10, MinLength: 4, MaxLength: 16, ReadBack: true},
			{Type: CredentialTypeFingerBiometric, Slots: 10, MinLength: 1, MaxLength: 64,
				LearnSupported: true, LearnTimeout: 20, LearnSteps: 3},
		},
	}
}

// Normalize sorts the credential table by type.
func (c *Capabilities) Normalize() {
	slices.SortFunc(c.Credentials, func(a, b TypeCapabilities) int {
		return int(a.Type) - int(b.Type)
	})
}

// SupportsUserType reports whether t may be stored.
func (c *Capabilities) SupportsUserType(t UserType) bool {
	return slices.Contains(c.UserTypes, t)
}

// SupportsCredentialRule reports whether r may be stored.
func (c *Capabilities) SupportsCredentialRule(r CredentialRule) bool {
	return slices.Contains(c.CredentialRules, r)
}

// Type returns the capabilities for credential type t.
func (c *Capabilities) Type(t CredentialType) (TypeCapabilities, bool) {
	for _, tc := range c.Credentials {
		if tc.Type == t {
			return tc, true
		}
	}
	return TypeCapabilities{}, false
}

// CredentialCapacity returns how many credentials may be stored in total.
func (c *Capabilities) CredentialCapacity() uint16 {
	if c.MaxCredentials != 0 {
		return c.MaxCredentials
	}
	var total uint32
	for _, tc := range c.Credentials {
		total += uint32(tc.Slots)
	}
	if total > 0xFFFF {
		return 0xFFFF
	}
	return uint16(total)
}

// UserTypeMask returns the supported user types as a little-endian bit mask,
// bit n of the mask standing for user type n.
func (c *Capabilities) UserTypeMask() []byte {
	var mask []byte
	for _, t := range c.UserTypes {
		idx := int(t) / 8
		for len(mask) <= idx {
			mask = append(mask, 0)
		}
		mask[idx] |= 1 << (uint(t) % 8)
	}
	return mask
}

// CredentialRuleMask returns the supported rules as a bit mask, bit n standing for rule n.
func (c *Capabilities) CredentialRuleMask() uint8 {
	var mask uint8
	for _, r := range c.CredentialRules {
		if r < 8 {
			mask |= 1 << r
		}
	}
	return mask
}
