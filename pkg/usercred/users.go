package usercred

import (
	"errors"
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/database"
)

// SetUser applies a User Set request.
//
// Deleting UUID 0 removes every credential and then every user. Deleting
// one user removes its credentials first.
func (s *Service) SetUser(origin Origin, op credential.OperationType, u credential.User) error {
	u = u.Clone()
	u.Modifier = origin.modifier()

	switch op {
	case credential.OperationAdd:
		return s.addUser(origin, u)
	case credential.OperationModify:
		return s.modifyUser(origin, u)
	case credential.OperationDelete:
		if u.UUID == credential.UUIDInvalid {
			return s.deleteAllUsers(origin)
		}
		return s.deleteUser(origin, u.UUID)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidOperation, op)
	}
}

// checkUser applies the expiring-minutes rule and validates u. It returns
// ErrRejected after sending a ZeroExpiringMinutes report.
func (s *Service) checkUser(origin Origin, u *credential.User) error {
	if u.Type == credential.UserTypeExpiring {
		if u.ExpiringMinutes == 0 {
			s.reply(origin, s.userReport(UserZeroExpiringMinutes, *u))
			return fmt.Errorf("%w: expiring user %d without minutes", ErrRejected, u.UUID)
		}
	} else {
		u.ExpiringMinutes = 0
	}
	return s.valid.User(*u)
}

func (s *Service) addUser(origin Origin, u credential.User) error {
	if err := s.checkUser(origin, &u); err != nil {
		return err
	}

	err := s.db.AddUser(u)
	switch {
	case err == nil:
		s.log.Infof("%s added user %d", origin, u.UUID)
		s.deliver(origin, true, s.userReport(UserAdded, u))
		return nil
	case errors.Is(err, database.ErrIdentical):
		s.reply(origin, s.userReport(UserUnchanged, u))
		return nil
	case errors.Is(err, database.ErrOccupied):
		stored, gerr := s.db.GetUser(u.UUID)
		if gerr != nil {
			return gerr
		}
		s.reply(origin, s.userReport(UserAddAgainstOccupied, stored))
		return fmt.Errorf("%w: user %d exists", ErrRejected, u.UUID)
	default:
		s.log.Warnf("adding user %d: %v", u.UUID, err)
		s.replyCurrentUser(origin, u.UUID)
		return err
	}
}

func (s *Service) modifyUser(origin Origin, u credential.User) error {
	if !s.db.HasUser(u.UUID) {
		s.reply(origin, s.userReport(UserModifyAgainstEmpty, emptyUser(u.UUID)))
		return fmt.Errorf("%w: user %d does not exist", ErrRejected, u.UUID)
	}
	if err := s.checkUser(origin, &u); err != nil {
		return err
	}

	err := s.db.ModifyUser(u)
	switch {
	case err == nil:
		s.log.Infof("%s modified user %d", origin, u.UUID)
		s.deliver(origin, true, s.userReport(UserModified, u))
		return nil
	case errors.Is(err, database.ErrIdentical):
		s.reply(origin, s.userReport(UserUnchanged, u))
		return nil
	default:
		s.log.Warnf("modifying user %d: %v", u.UUID, err)
		s.replyCurrentUser(origin, u.UUID)
		return err
	}
}

func (s *Service) deleteUser(origin Origin, uuid credential.UUID) error {
	stored, err := s.db.GetUser(uuid)
	if errors.Is(err, database.ErrNotFound) {
		s.reply(origin, s.userReport(UserUnchanged, emptyUser(uuid)))
		return nil
	}
	if err != nil {
		s.log.Warnf("reading user %d: %v", uuid, err)
		return err
	}

	if _, err := s.deleteCredentials(database.CredentialFilter{UUID: uuid}); err != nil {
		s.log.Warnf("deleting credentials of user %d: %v", uuid, err)
		s.replyCurrentUser(origin, uuid)
		return err
	}
	if err := s.db.DeleteUser(uuid); err != nil {
		s.log.Warnf("deleting user %d: %v", uuid, err)
		s.replyCurrentUser(origin, uuid)
		return err
	}

	s.log.Infof("%s deleted user %d", origin, uuid)
	stored.Modifier = origin.modifier()
	s.deliver(origin, true, s.userReport(UserDeleted, stored))
	return nil
}

func (s *Service) deleteAllUsers(origin Origin) error {
	if _, err := s.deleteCredentials(database.CredentialFilter{}); err != nil {
		s.log.Warnf("deleting all credentials: %v", err)
		return err
	}
	for uuid, ok := s.db.NextUser(credential.UUIDInvalid); ok; {
		next, more := s.db.NextUser(uuid)
		if err := s.db.DeleteUser(uuid); err != nil {
			s.log.Warnf("deleting user %d: %v", uuid, err)
			return err
		}
		uuid, ok = next, more
	}

	s.log.Infof("%s deleted all users", origin)
	all := emptyUser(credential.UUIDInvalid)
	all.Modifier = origin.modifier()
	s.deliver(origin, true, UserReport{Type: UserDeleted, User: all})
	return nil
}

// GetUser answers a User Get. UUID 0 returns the first stored user.
func (s *Service) GetUser(uuid credential.UUID) (UserReport, error) {
	if uuid == credential.UUIDInvalid {
		first, ok := s.db.NextUser(credential.UUIDInvalid)
		if !ok {
			return UserReport{Type: UserResponseToGet, User: emptyUser(credential.UUIDInvalid)}, nil
		}
		uuid = first
	}

	u, err := s.db.GetUser(uuid)
	if errors.Is(err, database.ErrNotFound) {
		u = emptyUser(uuid)
	} else if err != nil {
		return UserReport{}, err
	}
	return s.userReport(UserResponseToGet, u), nil
}

func (s *Service) userReport(t UserReportType, u credential.User) UserReport {
	next, _ := s.db.NextUser(u.UUID)
	return UserReport{Type: t, User: u, Next: next}
}

// replyCurrentUser answers a failed request with the stored state of uuid.
func (s *Service) replyCurrentUser(origin Origin, uuid credential.UUID) {
	u, err := s.db.GetUser(uuid)
	if err != nil {
		u = emptyUser(uuid)
	}
	s.reply(origin, s.userReport(UserUnchanged, u))
}

func emptyUser(uuid credential.UUID) credential.User {
	return credential.User{UUID: uuid, Modifier: credential.Modifier{Type: credential.ModifierDNE}}
}
