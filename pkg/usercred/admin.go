package usercred

import (
	"errors"
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/database"
	"github.com/backkem/doorlock/pkg/validate"
)

var adminResults = map[validate.Reason]AdminCodeResult{
	validate.ReasonAdminCodeIdentical:      AdminCodeUnmodified,
	validate.ReasonAdminCodeInvalid:        AdminCodeErrorInvalidCode,
	validate.ReasonAdminCodeDuplicate:      AdminCodeErrorDuplicateCredential,
	validate.ReasonSecurityRules:           AdminCodeErrorManufacturerSecurityRules,
	validate.ReasonDeactivationUnsupported: AdminCodeErrorDeactivationNotSupported,
}

// SetAdminCode applies an Admin PIN Code Set. An empty code deactivates the
// admin code. The result is reported to the requester; a change also goes
// to the lifeline.
func (s *Service) SetAdminCode(origin Origin, code credential.AdminCode) (AdminCodeResult, error) {
	if !s.caps.AdminCode {
		return 0, ErrUnsupported
	}

	if err := s.valid.AdminCode(code); err != nil {
		result, ok := adminResults[validate.ReasonOf(err)]
		if !ok {
			return 0, err
		}
		s.reply(origin, AdminCodeReport{Result: result, Code: s.db.AdminCode()})
		if result == AdminCodeUnmodified {
			return result, nil
		}
		return result, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	err := s.db.SetAdminCode(code)
	switch {
	case err == nil:
		s.log.Infof("%s changed the admin code (active=%t)", origin, code.Active())
		s.deliver(origin, true, AdminCodeReport{Result: AdminCodeModified, Code: s.db.AdminCode()})
		return AdminCodeModified, nil
	case errors.Is(err, database.ErrIdentical):
		s.reply(origin, AdminCodeReport{Result: AdminCodeUnmodified, Code: s.db.AdminCode()})
		return AdminCodeUnmodified, nil
	default:
		s.log.Warnf("writing admin code: %v", err)
		return 0, err
	}
}

// AdminCode answers an Admin PIN Code Get.
func (s *Service) AdminCode() (AdminCodeReport, error) {
	if !s.caps.AdminCode {
		return AdminCodeReport{}, ErrUnsupported
	}
	return AdminCodeReport{Result: AdminCodeResponseToGet, Code: s.db.AdminCode()}, nil
}
