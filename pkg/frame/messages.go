package frame

import (
	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/usercred"
)

// Field masks.
const (
	opMask       uint8 = 0x03
	activeMask   uint8 = 0x01
	encodingMask uint8 = 0x07
	crbMask      uint8 = 0x80
	adminLenMask uint8 = 0x0F

	userCapSchedule      uint8 = 0x80
	userCapAllChecksum   uint8 = 0x40
	userCapUserChecksum  uint8 = 0x20
	userCapExpiringUsers uint8 = 0x10

	credCapChecksum     uint8 = 0x80
	credCapAdminCode    uint8 = 0x40
	credCapDeactivation uint8 = 0x20

	typeCapLearn    uint8 = 0x80
	typeCapReadBack uint8 = 0x40
)

// UserCapabilitiesGet requests the user capabilities.
type UserCapabilitiesGet struct{}

// UserCapabilitiesReport describes user limits.
type UserCapabilitiesReport struct {
	MaxUsers         uint16
	RuleMask         uint8
	MaxNameLength    uint8
	Schedule         bool
	AllUsersChecksum bool
	UserChecksum     bool
	ExpiringUsers    bool
	UserTypeMask     []byte
}

// NewUserCapabilitiesReport builds the report for caps.
func NewUserCapabilitiesReport(caps credential.Capabilities) UserCapabilitiesReport {
	return UserCapabilitiesReport{
		MaxUsers:         caps.MaxUsers,
		RuleMask:         caps.CredentialRuleMask(),
		MaxNameLength:    caps.MaxNameLength,
		AllUsersChecksum: caps.AllUsersChecksum,
		UserChecksum:     caps.UserChecksum,
		ExpiringUsers:    caps.SupportsUserType(credential.UserTypeExpiring),
		UserTypeMask:     caps.UserTypeMask(),
	}
}

// CredentialCapabilitiesGet requests the credential capabilities.
type CredentialCapabilitiesGet struct{}

// CredentialCapabilitiesReport describes credential limits per type.
type CredentialCapabilitiesReport struct {
	CredentialChecksum    bool
	AdminCode             bool
	AdminCodeDeactivation bool
	Types                 []credential.TypeCapabilities
}

// NewCredentialCapabilitiesReport builds the report for caps.
func NewCredentialCapabilitiesReport(caps credential.Capabilities) CredentialCapabilitiesReport {
	caps.Normalize()
	return CredentialCapabilitiesReport{
		CredentialChecksum:    caps.CredentialChecksum,
		AdminCode:             caps.AdminCode,
		AdminCodeDeactivation: caps.AdminCodeDeactivation,
		Types:                 caps.Credentials,
	}
}

// UserSet adds, modifies or deletes a user.
type UserSet struct {
	Operation credential.OperationType
	User      credential.User
}

// UserGet requests one user; UUID 0 requests the first.
type UserGet struct {
	UUID credential.UUID
}

// CredentialSet adds, modifies or deletes a credential.
type CredentialSet struct {
	Operation  credential.OperationType
	Credential credential.Credential
}

// CredentialGet requests one credential.
type CredentialGet struct {
	UUID credential.UUID
	Key  credential.CredentialKey
}

// CredentialLearnStart starts a Credential Learn.
type CredentialLearnStart struct {
	UUID      credential.UUID
	Key       credential.CredentialKey
	Operation credential.OperationType
	// Timeout is the step timeout in seconds; 0 selects the default.
	Timeout uint8
}

// CredentialLearnCancel cancels the running Credential Learn.
type CredentialLearnCancel struct{}

// AssociationSet moves a credential.
type AssociationSet usercred.AssociationRequest

// AllUsersChecksumGet requests the all users checksum.
type AllUsersChecksumGet struct{}

// AllUsersChecksumReport carries the all users checksum.
type AllUsersChecksumReport struct {
	Checksum uint16
}

// UserChecksumGet requests the checksum of one user.
type UserChecksumGet struct {
	UUID credential.UUID
}

// UserChecksumReport carries the checksum of one user.
type UserChecksumReport struct {
	UUID     credential.UUID
	Checksum uint16
}

// CredentialChecksumGet requests the checksum of one credential type.
type CredentialChecksumGet struct {
	Type credential.CredentialType
}

// CredentialChecksumReport carries the checksum of one credential type.
type CredentialChecksumReport struct {
	Type     credential.CredentialType
	Checksum uint16
}

// AdminPinCodeSet sets or, with an empty code, deactivates the admin code.
type AdminPinCodeSet struct {
	Code credential.AdminCode
}

// AdminPinCodeGet requests the admin code.
type AdminPinCodeGet struct{}
