package credential

import "fmt"

// UUID is a User Unique Identifier. Zero is reserved and never stored.
type UUID uint16

// UUIDInvalid is the reserved identifier value.
const UUIDInvalid UUID = 0

// IsValid reports whether the identifier is usable as a key.
func (u UUID) IsValid() bool {
	return u != UUIDInvalid
}

// UserType classifies how a User may use its credentials.
type UserType uint8

// User types.
const (
	UserTypeGeneral     UserType = 0x00
	UserTypeProgramming UserType = 0x03
	UserTypeNonAccess   UserType = 0x04
	UserTypeDuress      UserType = 0x05
	UserTypeDisposable  UserType = 0x06
	UserTypeExpiring    UserType = 0x07
	UserTypeRemoteOnly  UserType = 0x09
)

// AllUserTypes lists every defined user type in wire order.
var AllUserTypes = []UserType{
	UserTypeGeneral,
	UserTypeProgramming,
	UserTypeNonAccess,
	UserTypeDuress,
	UserTypeDisposable,
	UserTypeExpiring,
	UserTypeRemoteOnly,
}

// IsValid reports whether t is a defined user type.
func (t UserType) IsValid() bool {
	switch t {
	case UserTypeGeneral, UserTypeProgramming, UserTypeNonAccess, UserTypeDuress,
		UserTypeDisposable, UserTypeExpiring, UserTypeRemoteOnly:
		return true
	default:
		return false
	}
}

// String returns the name of the user type.
func (t UserType) String() string {
	switch t {
	case UserTypeGeneral:
		return "General"
	case UserTypeProgramming:
		return "Programming"
	case UserTypeNonAccess:
		return "NonAccess"
	case UserTypeDuress:
		return "Duress"
	case UserTypeDisposable:
		return "Disposable"
	case UserTypeExpiring:
		return "Expiring"
	case UserTypeRemoteOnly:
		return "RemoteOnly"
	default:
		return fmt.Sprintf("UserType(0x%02X)", uint8(t))
	}
}

// CredentialRule is the number of distinct credentials needed to grant access.
type CredentialRule uint8

// Credential rules.
const (
	CredentialRuleSingle CredentialRule = 0x01
	CredentialRuleDual   CredentialRule = 0x02
	CredentialRuleTriple CredentialRule = 0x03
)

// IsValid reports whether r is a defined credential rule.
func (r CredentialRule) IsValid() bool {
	return r >= CredentialRuleSingle && r <= CredentialRuleTriple
}

// String returns the name of the credential rule.
func (r CredentialRule) String() string {
	switch r {
	case CredentialRuleSingle:
		return "Single"
	case CredentialRuleDual:
		return "Dual"
	case CredentialRuleTriple:
		return "Triple"
	default:
		return fmt.Sprintf("CredentialRule(0x%02X)", uint8(r))
	}
}

// NameEncoding is the character encoding of a User name.
type NameEncoding uint8

// Name encodings.
const (
	NameEncodingASCII         NameEncoding = 0x00
	NameEncodingExtendedASCII NameEncoding = 0x01
	NameEncodingUTF16         NameEncoding = 0x02
)

// IsValid reports whether e is a defined encoding.
func (e NameEncoding) IsValid() bool {
	return e <= NameEncodingUTF16
}

// String returns the name of the encoding.
func (e NameEncoding) String() string {
	switch e {
	case NameEncodingASCII:
		return "ASCII"
	case NameEncodingExtendedASCII:
		return "ExtendedASCII"
	case NameEncodingUTF16:
		return "UTF-16"
	default:
		return fmt.Sprintf("NameEncoding(0x%02X)", uint8(e))
	}
}

// CredentialType identifies the kind of a Credential.
type CredentialType uint8

// Credential types.
const (
	CredentialTypeNone                 CredentialType = 0x00
	CredentialTypePINCode              CredentialType = 0x01
	CredentialTypePassword             CredentialType = 0x02
	CredentialTypeRFIDCode             CredentialType = 0x03
	CredentialTypeBLE                  CredentialType = 0x04
	CredentialTypeNFC                  CredentialType = 0x05
	CredentialTypeUWB                  CredentialType = 0x06
	CredentialTypeEyeBiometric         CredentialType = 0x07
	CredentialTypeFaceBiometric        CredentialType = 0x08
	CredentialTypeFingerBiometric      CredentialType = 0x09
	CredentialTypeHandBiometric        CredentialType = 0x0A
	CredentialTypeUnspecifiedBiometric CredentialType = 0x0B
)

// MaxCredentialType is the highest defined credential type.
const MaxCredentialType = CredentialTypeUnspecifiedBiometric

// IsValid reports whether t names a real credential kind. None is not valid.
func (t CredentialType) IsValid() bool {
	return t >= CredentialTypePINCode && t <= MaxCredentialType
}

// IsBiometric reports whether t is one of the biometric template kinds.
func (t CredentialType) IsBiometric() bool {
	return t >= CredentialTypeEyeBiometric && t <= CredentialTypeUnspecifiedBiometric
}

// String returns the name of the credential type.
func (t CredentialType) String() string {
	switch t {
	case CredentialTypeNone:
		return "None"
	case CredentialTypePINCode:
		return "PINCode"
	case CredentialTypePassword:
		return "Password"
	case CredentialTypeRFIDCode:
		return "RFIDCode"
	case CredentialTypeBLE:
		return "BLE"
	case CredentialTypeNFC:
		return "NFC"
	case CredentialTypeUWB:
		return "UWB"
	case CredentialTypeEyeBiometric:
		return "EyeBiometric"
	case CredentialTypeFaceBiometric:
		return "FaceBiometric"
	case CredentialTypeFingerBiometric:
		return "FingerBiometric"
	case CredentialTypeHandBiometric:
		return "HandBiometric"
	case CredentialTypeUnspecifiedBiometric:
		return "UnspecifiedBiometric"
	default:
		return fmt.Sprintf("CredentialType(0x%02X)", uint8(t))
	}
}

// ModifierType records how an entry was last changed.
type ModifierType uint8

// Modifier types.
const (
	// ModifierDNE marks an entry that does not exist.
	ModifierDNE     ModifierType = 0x00
	ModifierUnknown ModifierType = 0x01
	ModifierZWave   ModifierType = 0x02
	ModifierLocal   ModifierType = 0x03
	ModifierMOA     ModifierType = 0x04
)

// String returns the name of the modifier type.
func (m ModifierType) String() string {
	switch m {
	case ModifierDNE:
		return "DNE"
	case ModifierUnknown:
		return "Unknown"
	case ModifierZWave:
		return "ZWave"
	case ModifierLocal:
		return "Local"
	case ModifierMOA:
		return "MOA"
	default:
		return fmt.Sprintf("ModifierType(0x%02X)", uint8(m))
	}
}

// OperationType is the verb of a Set request.
type OperationType uint8

// Operation types.
const (
	OperationAdd    OperationType = 0x00
	OperationModify OperationType = 0x01
	OperationDelete OperationType = 0x02
)

// String returns the name of the operation.
func (o OperationType) String() string {
	switch o {
	case OperationAdd:
		return "Add"
	case OperationModify:
		return "Modify"
	case OperationDelete:
		return "Delete"
	default:
		return fmt.Sprintf("OperationType(0x%02X)", uint8(o))
	}
}
