package usercred

import (
	"errors"
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/database"
)

// AssociationRequest moves a credential to another slot, another owner, or both.
type AssociationRequest struct {
	Type    credential.CredentialType
	SrcSlot uint16
	DstUUID credential.UUID
	DstSlot uint16
}

// SetAssociation applies a User Credential Association Set. The requester
// gets an Association Report; on success the lifeline also gets a Modified
// report for the credential at its new key.
//
// The move is all or nothing: any failure leaves the source untouched.
func (s *Service) SetAssociation(origin Origin, req AssociationRequest) (AssociationStatus, error) {
	status := s.checkAssociation(req)
	report := AssociationReport{
		Type:    req.Type,
		SrcSlot: req.SrcSlot,
		DstUUID: req.DstUUID,
		DstSlot: req.DstSlot,
		Status:  status,
	}
	if status != AssociationSuccess {
		s.log.Debugf("%s association %s/%d -> user %d slot %d: %s",
			origin, req.Type, req.SrcSlot, req.DstUUID, req.DstSlot, status)
		s.reply(origin, report)
		return status, fmt.Errorf("%w: %s", ErrRejected, status)
	}

	src := credential.CredentialKey{Type: req.Type, Slot: req.SrcSlot}
	err := s.db.MoveCredential(src, req.DstUUID, req.DstSlot, origin.modifier())
	switch {
	case err == nil:
	case errors.Is(err, database.ErrIdentical):
		s.reply(origin, report)
		return status, nil
	case errors.Is(err, database.ErrOccupied):
		report.Status = AssociationDestinationSlotOccupied
		s.reply(origin, report)
		return report.Status, fmt.Errorf("%w: %s", ErrRejected, report.Status)
	case errors.Is(err, database.ErrNotFound):
		report.Status = AssociationSourceSlotEmpty
		s.reply(origin, report)
		return report.Status, fmt.Errorf("%w: %s", ErrRejected, report.Status)
	default:
		s.log.Warnf("moving credential %s: %v", src, err)
		return status, err
	}

	s.log.Infof("%s moved credential %s to user %d slot %d", origin, src, req.DstUUID, req.DstSlot)
	s.reply(origin, report)

	dst := credential.CredentialKey{Type: req.Type, Slot: req.DstSlot}
	moved, err := s.db.GetCredential(dst)
	if err != nil {
		s.log.Warnf("reading moved credential %s: %v", dst, err)
		return status, nil
	}
	s.sink.Send(Target{Lifeline: true}, s.credentialReport(CredentialModified, moved))
	return status, nil
}

func (s *Service) checkAssociation(req AssociationRequest) AssociationStatus {
	tc, ok := s.caps.Type(req.Type)
	if !ok || !req.Type.IsValid() {
		return AssociationCredentialTypeInvalid
	}
	if req.SrcSlot == 0 || req.SrcSlot > tc.Slots {
		return AssociationSourceSlotInvalid
	}
	src := credential.CredentialKey{Type: req.Type, Slot: req.SrcSlot}
	if _, ok := s.db.CredentialOwner(src); !ok {
		return AssociationSourceSlotEmpty
	}
	if !req.DstUUID.IsValid() || uint16(req.DstUUID) > s.caps.MaxUsers {
		return AssociationDestinationUUIDInvalid
	}
	if !s.db.HasUser(req.DstUUID) {
		return AssociationDestinationUUIDNonexistent
	}
	if req.DstSlot == 0 || req.DstSlot > tc.Slots {
		return AssociationDestinationSlotInvalid
	}
	dst := credential.CredentialKey{Type: req.Type, Slot: req.DstSlot}
	if _, taken := s.db.CredentialOwner(dst); taken && dst != src {
		return AssociationDestinationSlotOccupied
	}
	return AssociationSuccess
}
