package validate

import (
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
)

// Reason is the machine-readable cause of a rejection.
type Reason uint8

// Rejection reasons.
const (
	ReasonUserType Reason = iota + 1
	ReasonCredentialRule
	ReasonUUID
	ReasonName
	ReasonNameEncoding
	ReasonCredentialType
	ReasonSlot
	ReasonUserNotFound
	ReasonLength
	ReasonContent
	ReasonDuplicate
	ReasonAdminCodeMatch
	ReasonSecurityRules
	ReasonAdminCodeUnsupported
	ReasonAdminCodeIdentical
	ReasonAdminCodeInvalid
	ReasonAdminCodeDuplicate
	ReasonDeactivationUnsupported
)

var reasonNames = map[Reason]string{
	ReasonUserType:                "unsupported user type",
	ReasonCredentialRule:          "unsupported credential rule",
	ReasonUUID:                    "uuid out of range",
	ReasonName:                    "name too long",
	ReasonNameEncoding:            "name does not match its encoding",
	ReasonCredentialType:          "unsupported credential type",
	ReasonSlot:                    "slot out of range",
	ReasonUserNotFound:            "user does not exist",
	ReasonLength:                  "credential length out of range",
	ReasonContent:                 "credential content rejected",
	ReasonDuplicate:               "duplicate credential",
	ReasonAdminCodeMatch:          "credential equals the admin code",
	ReasonSecurityRules:           "manufacturer security rules",
	ReasonAdminCodeUnsupported:    "admin code not supported",
	ReasonAdminCodeIdentical:      "admin code unchanged",
	ReasonAdminCodeInvalid:        "invalid admin code",
	ReasonAdminCodeDuplicate:      "admin code equals a credential",
	ReasonDeactivationUnsupported: "admin code deactivation not supported",
}

// String returns a description of the reason.
func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// Error is a validation failure.
type Error struct {
	Reason Reason

	// Existing is the stored credential that caused a ReasonDuplicate or
	// ReasonAdminCodeDuplicate rejection.
	Existing *credential.Credential

	// Cause is the error returned by a SecurityRules hook, if any.
	Cause error
}

func (e *Error) Error() string {
	switch {
	case e.Existing != nil:
		return fmt.Sprintf("validate: %s (existing %s, user %d)", e.Reason, e.Existing.Key(), e.Existing.UUID)
	case e.Cause != nil:
		return fmt.Sprintf("validate: %s: %v", e.Reason, e.Cause)
	default:
		return "validate: " + e.Reason.String()
	}
}

// Unwrap returns the hook error, if any.
func (e *Error) Unwrap() error { return e.Cause }

func reject(r Reason) error {
	return &Error{Reason: r}
}
