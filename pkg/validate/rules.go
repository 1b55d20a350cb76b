package validate

import (
	"errors"

	"github.com/backkem/doorlock/pkg/credential"
)

// SecurityRules is the manufacturer hook consulted last for every new
// credential and admin code. A non-nil error rejects the data.
type SecurityRules interface {
	CheckCredential(c credential.Credential) error
	CheckAdminCode(code credential.AdminCode) error
}

// Errors returned by DefaultSecurityRules.
var (
	ErrRepeatedDigits = errors.New("validate: code repeats one digit")
	ErrSequence       = errors.New("validate: code is a digit sequence")
)

// DefaultSecurityRules rejects PIN codes and admin codes that are a single
// repeated digit ("1111") or a run of consecutive digits ("1234", "9876").
type DefaultSecurityRules struct{}

var _ SecurityRules = DefaultSecurityRules{}

// CheckCredential applies the PIN rules to PIN code credentials.
func (DefaultSecurityRules) CheckCredential(c credential.Credential) error {
	if c.Type != credential.CredentialTypePINCode {
		return nil
	}
	return checkTrivialCode(c.Data)
}

// CheckAdminCode applies the PIN rules to the admin code.
func (DefaultSecurityRules) CheckAdminCode(code credential.AdminCode) error {
	return checkTrivialCode(code)
}

func checkTrivialCode(code []byte) error {
	if len(code) < 2 {
		return nil
	}
	repeated, up, down := true, true, true
	for i := 1; i < len(code); i++ {
		d := int(code[i]) - int(code[i-1])
		repeated = repeated && d == 0
		up = up && d == 1
		down = down && d == -1
	}
	switch {
	case repeated:
		return ErrRepeatedDigits
	case up, down:
		return ErrSequence
	}
	return nil
}

// NoSecurityRules accepts everything.
type NoSecurityRules struct{}

// CheckCredential accepts c.
func (NoSecurityRules) CheckCredential(credential.Credential) error { return nil }

// CheckAdminCode accepts code.
func (NoSecurityRules) CheckAdminCode(credential.AdminCode) error { return nil }

// dataRule checks type-specific credential content.
type dataRule interface {
	check(data []byte) bool
}

type digitsRule struct{}

func (digitsRule) check(data []byte) bool {
	for _, b := range data {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// utf16Rule requires whole UTF-16 code units.
type utf16Rule struct{}

func (utf16Rule) check(data []byte) bool {
	return len(data)%2 == 0
}

// opaqueRule accepts any bytes; tokens and templates are not interpreted here.
type opaqueRule struct{}

func (opaqueRule) check([]byte) bool { return true }

// ruleFor returns the content rule for t. Every defined credential type has
// a case; ok is false only for undefined types.
func ruleFor(t credential.CredentialType) (rule dataRule, ok bool) {
	switch t {
	case credential.CredentialTypePINCode:
		return digitsRule{}, true
	case credential.CredentialTypePassword:
		return utf16Rule{}, true
	case credential.CredentialTypeRFIDCode,
		credential.CredentialTypeBLE,
		credential.CredentialTypeNFC,
		credential.CredentialTypeUWB:
		return opaqueRule{}, true
	case credential.CredentialTypeEyeBiometric,
		credential.CredentialTypeFaceBiometric,
		credential.CredentialTypeFingerBiometric,
		credential.CredentialTypeHandBiometric,
		credential.CredentialTypeUnspecifiedBiometric:
		return opaqueRule{}, true
	default:
		return nil, false
	}
}
