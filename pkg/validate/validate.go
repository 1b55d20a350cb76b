// Package validate checks users, credentials and the admin code against the
// node capabilities, the duplicate rules and the manufacturer security hook.
//
// Validation never mutates storage.
package validate

import (
	"errors"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/database"
	"github.com/pion/logging"
)

// Source is the read-only view of the database the validator consults.
type Source interface {
	HasUser(uuid credential.UUID) bool
	NextCredential(after credential.CredentialKey, filter database.CredentialFilter) (credential.CredentialKey, bool)
	GetCredential(key credential.CredentialKey) (credential.Credential, error)
	AdminCode() credential.AdminCode
}

var _ Source = (*database.Database)(nil)

// Config configures a Validator.
type Config struct {
	Capabilities credential.Capabilities

	// Rules is the manufacturer hook. If nil, DefaultSecurityRules is used.
	Rules SecurityRules

	// LoggerFactory for creating loggers. If nil, the pion default is used.
	LoggerFactory logging.LoggerFactory
}

// Validator holds the limits and hook every check runs against.
type Validator struct {
	caps  credential.Capabilities
	rules SecurityRules
	src   Source
	log   logging.LeveledLogger
}

// New creates a Validator reading existing state from src.
func New(cfg Config, src Source) *Validator {
	if cfg.Rules == nil {
		cfg.Rules = DefaultSecurityRules{}
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	cfg.Capabilities.Normalize()
	return &Validator{
		caps:  cfg.Capabilities,
		rules: cfg.Rules,
		src:   src,
		log:   cfg.LoggerFactory.NewLogger("validate"),
	}
}

// Capabilities returns the limits the validator enforces.
func (v *Validator) Capabilities() credential.Capabilities {
	return v.caps
}

// User checks a user about to be added or modified.
func (v *Validator) User(u credential.User) error {
	switch {
	case !u.UUID.IsValid() || uint16(u.UUID) > v.caps.MaxUsers:
		return v.rejectf(ReasonUUID, "user %d", u.UUID)
	case !u.Type.IsValid() || !v.caps.SupportsUserType(u.Type):
		return v.rejectf(ReasonUserType, "user %d type %s", u.UUID, u.Type)
	case !u.CredentialRule.IsValid() || !v.caps.SupportsCredentialRule(u.CredentialRule):
		return v.rejectf(ReasonCredentialRule, "user %d rule %s", u.UUID, u.CredentialRule)
	case len(u.Name) > int(v.caps.MaxNameLength):
		return v.rejectf(ReasonName, "user %d name of %d bytes", u.UUID, len(u.Name))
	}
	if !NameEncoding(u.NameEncoding, u.Name) {
		return v.rejectf(ReasonNameEncoding, "user %d name is not %s", u.UUID, u.NameEncoding)
	}
	return nil
}

// NameEncoding reports whether name is well formed for enc. ASCII names hold
// only bytes up to 0x7F and UTF-16 names hold whole code units.
func NameEncoding(enc credential.NameEncoding, name []byte) bool {
	switch enc {
	case credential.NameEncodingASCII:
		for _, b := range name {
			if b > 0x7F {
				return false
			}
		}
		return true
	case credential.NameEncodingExtendedASCII:
		return true
	case credential.NameEncodingUTF16:
		return len(name)%2 == 0
	default:
		return false
	}
}

// CredentialMetadata checks the identity of a credential about to be stored:
// the type is supported, the owner is in range and exists, and the slot is
// within the type's slot count.
func (v *Validator) CredentialMetadata(c credential.Credential) error {
	tc, ok := v.caps.Type(c.Type)
	if !ok || !c.Type.IsValid() {
		return v.rejectf(ReasonCredentialType, "credential type %s", c.Type)
	}
	if !c.UUID.IsValid() || uint16(c.UUID) > v.caps.MaxUsers {
		return v.rejectf(ReasonUUID, "credential %s for user %d", c.Key(), c.UUID)
	}
	if c.Slot == 0 || c.Slot > tc.Slots {
		return v.rejectf(ReasonSlot, "credential %s beyond %d slots", c.Key(), tc.Slots)
	}
	if !v.src.HasUser(c.UUID) {
		return v.rejectf(ReasonUserNotFound, "credential %s for unknown user %d", c.Key(), c.UUID)
	}
	return nil
}

// CredentialData checks the content of a credential about to be stored.
//
// The checks run in order: length bounds, type content rules, the admin
// code, duplicates of the same type elsewhere, then the security hook.
// Resubmitting a credential under its own key is not a duplicate.
func (v *Validator) CredentialData(c credential.Credential) error {
	tc, ok := v.caps.Type(c.Type)
	if !ok {
		return v.rejectf(ReasonCredentialType, "credential type %s", c.Type)
	}
	if len(c.Data) < int(tc.MinLength) || len(c.Data) > int(tc.MaxLength) {
		return v.rejectf(ReasonLength, "credential %s has %d bytes, want %d..%d",
			c.Key(), len(c.Data), tc.MinLength, tc.MaxLength)
	}
	rule, ok := ruleFor(c.Type)
	if !ok {
		return v.rejectf(ReasonCredentialType, "credential type %s", c.Type)
	}
	if !rule.check(c.Data) {
		return v.rejectf(ReasonContent, "credential %s content", c.Key())
	}

	if c.Type == credential.CredentialTypePINCode && v.caps.AdminCode {
		if admin := v.src.AdminCode(); admin.Active() && string(admin) == string(c.Data) {
			return v.rejectf(ReasonAdminCodeMatch, "credential %s", c.Key())
		}
	}

	if existing, found := v.FindExistingCredential(c); found && existing.Key() != c.Key() {
		v.log.Debugf("rejecting credential %s: same data as %s of user %d", c.Key(), existing.Key(), existing.UUID)
		return &Error{Reason: ReasonDuplicate, Existing: &existing}
	}

	if err := v.rules.CheckCredential(c); err != nil {
		v.log.Debugf("rejecting credential %s: %v", c.Key(), err)
		return &Error{Reason: ReasonSecurityRules, Cause: err}
	}
	return nil
}

// Credential runs CredentialMetadata then CredentialData.
func (v *Validator) Credential(c credential.Credential) error {
	if err := v.CredentialMetadata(c); err != nil {
		return err
	}
	return v.CredentialData(c)
}

// FindExistingCredential scans every stored credential of c's type for one
// holding the same data. A credential that cannot be read is skipped.
func (v *Validator) FindExistingCredential(c credential.Credential) (credential.Credential, bool) {
	filter := database.CredentialFilter{Type: c.Type}
	for key, ok := v.src.NextCredential(credential.CredentialKey{}, filter); ok; key, ok = v.src.NextCredential(key, filter) {
		stored, err := v.src.GetCredential(key)
		if err != nil {
			v.log.Warnf("duplicate scan: reading %s: %v", key, err)
			continue
		}
		if stored.SameSecret(c) {
			return stored, true
		}
	}
	return credential.Credential{}, false
}

// AdminCode checks a new admin code. An empty code deactivates the admin code.
//
// Each path yields a distinct reason: ReasonAdminCodeIdentical when the code
// equals the stored one, ReasonAdminCodeDuplicate when a PIN credential holds
// it, and ReasonSecurityRules when the hook rejects it.
func (v *Validator) AdminCode(code credential.AdminCode) error {
	if !v.caps.AdminCode {
		return v.rejectf(ReasonAdminCodeUnsupported, "admin code")
	}
	current := v.src.AdminCode()
	if string(current) == string(code) {
		return reject(ReasonAdminCodeIdentical)
	}
	if len(code) == 0 {
		if !v.caps.AdminCodeDeactivation {
			return v.rejectf(ReasonDeactivationUnsupported, "admin code deactivation")
		}
		return nil
	}
	if len(code) < credential.AdminCodeMinLength || len(code) > credential.AdminCodeMaxLength ||
		!(digitsRule{}).check(code) {
		return v.rejectf(ReasonAdminCodeInvalid, "admin code of %d bytes", len(code))
	}

	pin := credential.Credential{Type: credential.CredentialTypePINCode, Data: code}
	if existing, found := v.FindExistingCredential(pin); found {
		v.log.Debugf("rejecting admin code: held by %s of user %d", existing.Key(), existing.UUID)
		return &Error{Reason: ReasonAdminCodeDuplicate, Existing: &existing}
	}

	if err := v.rules.CheckAdminCode(code); err != nil {
		v.log.Debugf("rejecting admin code: %v", err)
		return &Error{Reason: ReasonSecurityRules, Cause: err}
	}
	return nil
}

func (v *Validator) rejectf(r Reason, format string, args ...any) error {
	v.log.Debugf("rejecting "+format+": "+r.String(), args...)
	return reject(r)
}

// ReasonOf returns the reason carried by err, or 0 if err is not a
// validation error.
func ReasonOf(err error) Reason {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return 0
}
