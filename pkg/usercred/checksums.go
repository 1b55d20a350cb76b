package usercred

import (
	"github.com/backkem/doorlock/pkg/checksum"
	"github.com/backkem/doorlock/pkg/credential"
)

// AllUsersChecksum answers an All Users Checksum Get.
func (s *Service) AllUsersChecksum() (uint16, error) {
	if !s.caps.AllUsersChecksum {
		return 0, ErrUnsupported
	}
	return checksum.AllUsers(s.db)
}

// UserChecksum answers a User Checksum Get.
func (s *Service) UserChecksum(uuid credential.UUID) (uint16, error) {
	if !s.caps.UserChecksum {
		return 0, ErrUnsupported
	}
	return checksum.User(s.db, uuid)
}

// CredentialChecksum answers a Credential Checksum Get. Types the node does
// not support, including CredentialTypeNone, are ErrUnsupported.
func (s *Service) CredentialChecksum(t credential.CredentialType) (uint16, error) {
	if !s.caps.CredentialChecksum {
		return 0, ErrUnsupported
	}
	if _, ok := s.caps.Type(t); !ok || t == credential.CredentialTypeNone {
		return 0, ErrUnsupported
	}
	return checksum.CredentialType(s.db, t)
}
