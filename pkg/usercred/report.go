package usercred

import (
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
)

// UserReportType tells a controller why a User Report was sent.
type UserReportType uint8

// User report types.
const (
	UserAdded               UserReportType = 0x00
	UserModified            UserReportType = 0x01
	UserDeleted             UserReportType = 0x02
	UserUnchanged           UserReportType = 0x03
	UserResponseToGet       UserReportType = 0x04
	UserAddAgainstOccupied  UserReportType = 0x05
	UserModifyAgainstEmpty  UserReportType = 0x06
	UserZeroExpiringMinutes UserReportType = 0x07
)

// IsChange reports whether the report announces a stored change.
func (t UserReportType) IsChange() bool {
	return t == UserAdded || t == UserModified || t == UserDeleted
}

func (t UserReportType) String() string {
	switch t {
	case UserAdded:
		return "Added"
	case UserModified:
		return "Modified"
	case UserDeleted:
		return "Deleted"
	case UserUnchanged:
		return "Unchanged"
	case UserResponseToGet:
		return "ResponseToGet"
	case UserAddAgainstOccupied:
		return "AddAgainstOccupied"
	case UserModifyAgainstEmpty:
		return "ModifyAgainstEmpty"
	case UserZeroExpiringMinutes:
		return "ZeroExpiringMinutes"
	default:
		return fmt.Sprintf("UserReportType(0x%02X)", uint8(t))
	}
}

// CredentialReportType tells a controller why a Credential Report was sent.
type CredentialReportType uint8

// Credential report types.
const (
	CredentialAdded                     CredentialReportType = 0x00
	CredentialModified                  CredentialReportType = 0x01
	CredentialDeleted                   CredentialReportType = 0x02
	CredentialUnchanged                 CredentialReportType = 0x03
	CredentialResponseToGet             CredentialReportType = 0x04
	CredentialAddAgainstOccupied        CredentialReportType = 0x05
	CredentialModifyAgainstEmpty        CredentialReportType = 0x06
	CredentialDuplicate                 CredentialReportType = 0x07
	CredentialManufacturerSecurityRules CredentialReportType = 0x08
	CredentialWrongUUID                 CredentialReportType = 0x09
	CredentialDuplicateAdminPinCode     CredentialReportType = 0x0A
)

// IsChange reports whether the report announces a stored change.
func (t CredentialReportType) IsChange() bool {
	return t == CredentialAdded || t == CredentialModified || t == CredentialDeleted
}

func (t CredentialReportType) String() string {
	switch t {
	case CredentialAdded:
		return "Added"
	case CredentialModified:
		return "Modified"
	case CredentialDeleted:
		return "Deleted"
	case CredentialUnchanged:
		return "Unchanged"
	case CredentialResponseToGet:
		return "ResponseToGet"
	case CredentialAddAgainstOccupied:
		return "AddAgainstOccupied"
	case CredentialModifyAgainstEmpty:
		return "ModifyAgainstEmpty"
	case CredentialDuplicate:
		return "Duplicate"
	case CredentialManufacturerSecurityRules:
		return "ManufacturerSecurityRules"
	case CredentialWrongUUID:
		return "WrongUUID"
	case CredentialDuplicateAdminPinCode:
		return "DuplicateAdminPinCode"
	default:
		return fmt.Sprintf("CredentialReportType(0x%02X)", uint8(t))
	}
}

// AssociationStatus is the outcome of a User Credential Association Set.
type AssociationStatus uint8

// Association statuses.
const (
	AssociationSuccess                    AssociationStatus = 0x00
	AssociationCredentialTypeInvalid      AssociationStatus = 0x01
	AssociationSourceSlotInvalid          AssociationStatus = 0x02
	AssociationSourceSlotEmpty            AssociationStatus = 0x03
	AssociationDestinationUUIDInvalid     AssociationStatus = 0x04
	AssociationDestinationUUIDNonexistent AssociationStatus = 0x05
	AssociationDestinationSlotInvalid     AssociationStatus = 0x06
	AssociationDestinationSlotOccupied    AssociationStatus = 0x07
)

func (s AssociationStatus) String() string {
	switch s {
	case AssociationSuccess:
		return "Success"
	case AssociationCredentialTypeInvalid:
		return "CredentialTypeInvalid"
	case AssociationSourceSlotInvalid:
		return "SourceSlotInvalid"
	case AssociationSourceSlotEmpty:
		return "SourceSlotEmpty"
	case AssociationDestinationUUIDInvalid:
		return "DestinationUUIDInvalid"
	case AssociationDestinationUUIDNonexistent:
		return "DestinationUUIDNonexistent"
	case AssociationDestinationSlotInvalid:
		return "DestinationSlotInvalid"
	case AssociationDestinationSlotOccupied:
		return "DestinationSlotOccupied"
	default:
		return fmt.Sprintf("AssociationStatus(0x%02X)", uint8(s))
	}
}

// AdminCodeResult is the 4-bit result carried by an Admin PIN Code Report.
type AdminCodeResult uint8

// Admin code results.
const (
	AdminCodeModified                       AdminCodeResult = 0x01
	AdminCodeUnmodified                     AdminCodeResult = 0x03
	AdminCodeResponseToGet                  AdminCodeResult = 0x04
	AdminCodeErrorManufacturerSecurityRules AdminCodeResult = 0x0C
	AdminCodeErrorDeactivationNotSupported  AdminCodeResult = 0x0D
	AdminCodeErrorDuplicateCredential       AdminCodeResult = 0x0E
	AdminCodeErrorInvalidCode               AdminCodeResult = 0x0F
)

// IsError reports whether r is one of the error results.
func (r AdminCodeResult) IsError() bool {
	return r >= AdminCodeErrorManufacturerSecurityRules
}

// LearnStatus is carried by a Credential Learn Report.
type LearnStatus uint8

// Learn statuses.
const (
	LearnStarted                    LearnStatus = 0x00
	LearnSuccess                    LearnStatus = 0x01
	LearnAlreadyInProgress          LearnStatus = 0x02
	LearnEndedNotDueToTimeout       LearnStatus = 0x03
	LearnTimeout                    LearnStatus = 0x04
	LearnStepRetry                  LearnStatus = 0x05
	LearnInvalidAddOperationType    LearnStatus = 0x06
	LearnInvalidModifyOperationType LearnStatus = 0x07
)

func (s LearnStatus) String() string {
	switch s {
	case LearnStarted:
		return "Started"
	case LearnSuccess:
		return "Success"
	case LearnAlreadyInProgress:
		return "AlreadyInProgress"
	case LearnEndedNotDueToTimeout:
		return "EndedNotDueToTimeout"
	case LearnTimeout:
		return "Timeout"
	case LearnStepRetry:
		return "StepRetry"
	case LearnInvalidAddOperationType:
		return "InvalidAddOperationType"
	case LearnInvalidModifyOperationType:
		return "InvalidModifyOperationType"
	default:
		return fmt.Sprintf("LearnStatus(0x%02X)", uint8(s))
	}
}

// Report is an outbound notification. It is one of UserReport,
// CredentialReport, AssociationReport, AdminCodeReport or LearnReport.
type Report interface {
	isReport()
}

// UserReport carries one user. For a missing user the modifier type is DNE.
type UserReport struct {
	Type UserReportType
	User credential.User
	// Next is the following stored UUID, 0 at the end.
	Next credential.UUID
}

// CredentialReport carries one credential.
type CredentialReport struct {
	Type       CredentialReportType
	Credential credential.Credential
	// ReadBack is set when Credential.Data holds the stored data.
	ReadBack bool
	// Next is the following stored key, zero at the end.
	Next credential.CredentialKey
}

// AssociationReport answers a User Credential Association Set.
type AssociationReport struct {
	Type    credential.CredentialType
	SrcSlot uint16
	DstUUID credential.UUID
	DstSlot uint16
	Status  AssociationStatus
}

// AdminCodeReport carries the admin code and the result of the last request.
type AdminCodeReport struct {
	Result AdminCodeResult
	Code   credential.AdminCode
}

// LearnReport reports Credential Learn progress.
type LearnReport struct {
	Status         LearnStatus
	UUID           credential.UUID
	Type           credential.CredentialType
	Slot           uint16
	StepsRemaining uint8
}

func (UserReport) isReport()        {}
func (CredentialReport) isReport()  {}
func (AssociationReport) isReport() {}
func (AdminCodeReport) isReport()   {}
func (LearnReport) isReport()       {}

func (r UserReport) String() string {
	return fmt.Sprintf("UserReport{%s, %s, next=%d}", r.Type, r.User, r.Next)
}

func (r CredentialReport) String() string {
	return fmt.Sprintf("CredentialReport{%s, %s, next=%s}", r.Type, r.Credential, r.Next)
}
