package usercred

import (
	"errors"
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/database"
	"github.com/backkem/doorlock/pkg/validate"
)

// SetCredential applies a Credential Set request.
//
// Delete accepts wildcards: UUID 0 deletes every credential of the type
// (type 0 meaning all types), type 0 deletes every credential of the user
// and slot 0 deletes every credential of the type owned by the user.
func (s *Service) SetCredential(origin Origin, op credential.OperationType, c credential.Credential) error {
	c = c.Clone()
	c.Modifier = origin.modifier()

	switch op {
	case credential.OperationAdd:
		return s.addCredential(origin, c)
	case credential.OperationModify:
		return s.modifyCredential(origin, c)
	case credential.OperationDelete:
		return s.deleteCredential(origin, c)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidOperation, op)
	}
}

func (s *Service) addCredential(origin Origin, c credential.Credential) error {
	if err := s.valid.CredentialMetadata(c); err != nil {
		return err
	}

	if stored, err := s.db.GetCredential(c.Key()); err == nil {
		if stored.SameContent(c) {
			s.reply(origin, s.credentialReport(CredentialUnchanged, stored))
			return nil
		}
		s.reply(origin, s.credentialReport(CredentialAddAgainstOccupied, stored))
		return fmt.Errorf("%w: %s is occupied", ErrRejected, c.Key())
	} else if !errors.Is(err, database.ErrNotFound) {
		s.log.Warnf("reading credential %s: %v", c.Key(), err)
		return err
	}

	if err := s.checkCredentialData(origin, c); err != nil {
		return err
	}

	err := s.db.AddCredential(c)
	switch {
	case err == nil:
		s.log.Infof("%s added credential %s for user %d", origin, c.Key(), c.UUID)
		s.deliver(origin, true, s.credentialReport(CredentialAdded, c))
		return nil
	case errors.Is(err, database.ErrIdentical):
		s.reply(origin, s.credentialReport(CredentialUnchanged, c))
		return nil
	default:
		s.log.Warnf("adding credential %s: %v", c.Key(), err)
		s.replyCurrentCredential(origin, c)
		return err
	}
}

func (s *Service) modifyCredential(origin Origin, c credential.Credential) error {
	if err := s.valid.CredentialMetadata(c); err != nil {
		return err
	}

	stored, err := s.db.GetCredential(c.Key())
	if errors.Is(err, database.ErrNotFound) {
		s.reply(origin, s.credentialReport(CredentialModifyAgainstEmpty, emptyCredential(c)))
		return fmt.Errorf("%w: %s is empty", ErrRejected, c.Key())
	}
	if err != nil {
		s.log.Warnf("reading credential %s: %v", c.Key(), err)
		return err
	}
	if stored.UUID != c.UUID {
		s.reply(origin, s.credentialReport(CredentialWrongUUID, stored))
		return fmt.Errorf("%w: %s belongs to user %d", ErrRejected, c.Key(), stored.UUID)
	}
	if stored.SameContent(c) {
		s.reply(origin, s.credentialReport(CredentialUnchanged, stored))
		return nil
	}

	if err := s.checkCredentialData(origin, c); err != nil {
		return err
	}

	err = s.db.ModifyCredential(c)
	switch {
	case err == nil:
		s.log.Infof("%s modified credential %s", origin, c.Key())
		s.deliver(origin, true, s.credentialReport(CredentialModified, c))
		return nil
	case errors.Is(err, database.ErrIdentical):
		s.reply(origin, s.credentialReport(CredentialUnchanged, c))
		return nil
	case errors.Is(err, database.ErrReassignRejected):
		s.reply(origin, s.credentialReport(CredentialWrongUUID, stored))
		return fmt.Errorf("%w: %v", ErrRejected, err)
	default:
		s.log.Warnf("modifying credential %s: %v", c.Key(), err)
		s.replyCurrentCredential(origin, c)
		return err
	}
}

// checkCredentialData validates the data of c and answers rejections that
// have a report type of their own.
func (s *Service) checkCredentialData(origin Origin, c credential.Credential) error {
	err := s.valid.CredentialData(c)
	if err == nil {
		return nil
	}

	var verr *validate.Error
	if !errors.As(err, &verr) {
		return err
	}
	switch verr.Reason {
	case validate.ReasonDuplicate:
		s.reply(origin, s.credentialReport(CredentialDuplicate, *verr.Existing))
	case validate.ReasonAdminCodeMatch:
		s.reply(origin, s.credentialReport(CredentialDuplicateAdminPinCode, c))
	case validate.ReasonSecurityRules:
		s.reply(origin, s.credentialReport(CredentialManufacturerSecurityRules, c))
	default:
		return err
	}
	return fmt.Errorf("%w: %v", ErrRejected, err)
}

func (s *Service) deleteCredential(origin Origin, c credential.Credential) error {
	switch {
	case c.UUID == credential.UUIDInvalid:
		return s.bulkDeleteCredentials(origin, c, database.CredentialFilter{Type: c.Type})
	case c.Type == credential.CredentialTypeNone:
		return s.bulkDeleteCredentials(origin, c, database.CredentialFilter{UUID: c.UUID})
	case c.Slot == 0:
		return s.bulkDeleteCredentials(origin, c, database.CredentialFilter{UUID: c.UUID, Type: c.Type})
	}

	stored, err := s.db.GetCredential(c.Key())
	if errors.Is(err, database.ErrNotFound) {
		s.reply(origin, s.credentialReport(CredentialUnchanged, emptyCredential(c)))
		return nil
	}
	if err != nil {
		s.log.Warnf("reading credential %s: %v", c.Key(), err)
		return err
	}
	if stored.UUID != c.UUID {
		s.reply(origin, s.credentialReport(CredentialWrongUUID, stored))
		return fmt.Errorf("%w: %s belongs to user %d", ErrRejected, c.Key(), stored.UUID)
	}

	if err := s.db.DeleteCredential(c.Key()); err != nil {
		s.log.Warnf("deleting credential %s: %v", c.Key(), err)
		s.replyCurrentCredential(origin, c)
		return err
	}

	s.log.Infof("%s deleted credential %s", origin, c.Key())
	stored.Modifier = origin.modifier()
	s.deliver(origin, true, s.credentialReport(CredentialDeleted, stored))
	return nil
}

func (s *Service) bulkDeleteCredentials(origin Origin, req credential.Credential, filter database.CredentialFilter) error {
	n, err := s.deleteCredentials(filter)
	if err != nil {
		s.log.Warnf("bulk delete (user %d, type %s) stopped after %d: %v", filter.UUID, filter.Type, n, err)
		return err
	}
	s.log.Infof("%s deleted %d credentials (user %d, type %s)", origin, n, filter.UUID, filter.Type)

	deleted := credential.Credential{
		UUID:     req.UUID,
		Type:     req.Type,
		Slot:     0,
		Modifier: origin.modifier(),
	}
	s.deliver(origin, true, CredentialReport{Type: CredentialDeleted, Credential: deleted})
	return nil
}

// deleteCredentials deletes every credential matching filter. The next key
// is fetched before the current one is deleted.
func (s *Service) deleteCredentials(filter database.CredentialFilter) (int, error) {
	n := 0
	key, ok := s.db.NextCredential(credential.CredentialKey{}, filter)
	for ok {
		next, more := s.db.NextCredential(key, filter)
		if err := s.db.DeleteCredential(key); err != nil {
			return n, err
		}
		n++
		key, ok = next, more
	}
	return n, nil
}

// GetCredential answers a Credential Get. Slot 0 returns the first
// credential of key.Type, or of any type when that is also 0, owned by uuid
// or by any user when uuid is 0. Data is only included for types that allow
// read back.
func (s *Service) GetCredential(uuid credential.UUID, key credential.CredentialKey) (CredentialReport, error) {
	filter := database.CredentialFilter{UUID: uuid}
	if key.Slot == 0 {
		first, ok := s.db.NextCredential(credential.CredentialKey{}, database.CredentialFilter{UUID: uuid, Type: key.Type})
		if !ok {
			empty := emptyCredential(credential.Credential{UUID: uuid, Type: key.Type})
			return CredentialReport{Type: CredentialResponseToGet, Credential: empty}, nil
		}
		key = first
	}

	c, err := s.db.GetCredential(key)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c = emptyCredential(credential.Credential{UUID: uuid, Type: key.Type, Slot: key.Slot})
	case err != nil:
		return CredentialReport{}, err
	case uuid != credential.UUIDInvalid && c.UUID != uuid:
		c = emptyCredential(credential.Credential{UUID: uuid, Type: key.Type, Slot: key.Slot})
	}

	r := s.credentialReport(CredentialResponseToGet, c)
	r.Next, _ = s.db.NextCredential(key, filter)
	return r, nil
}

// credentialReport builds a report for c with the next key of the same owner.
// Data is carried only for types that allow read back.
func (s *Service) credentialReport(t CredentialReportType, c credential.Credential) CredentialReport {
	r := CredentialReport{Type: t, Credential: c}
	r.Next, _ = s.db.NextCredential(c.Key(), database.CredentialFilter{UUID: c.UUID})
	if tc, ok := s.caps.Type(c.Type); ok && tc.ReadBack && len(c.Data) > 0 {
		r.ReadBack = true
	} else {
		r.Credential.Data = nil
	}
	return r
}

// replyCurrentCredential answers a failed request with the stored state of c's key.
func (s *Service) replyCurrentCredential(origin Origin, c credential.Credential) {
	stored, err := s.db.GetCredential(c.Key())
	if err != nil {
		stored = emptyCredential(c)
	}
	s.reply(origin, s.credentialReport(CredentialUnchanged, stored))
}

func emptyCredential(c credential.Credential) credential.Credential {
	return credential.Credential{
		UUID:     c.UUID,
		Type:     c.Type,
		Slot:     c.Slot,
		Modifier: credential.Modifier{Type: credential.ModifierDNE},
	}
}
