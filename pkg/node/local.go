package node

import (
	"errors"
	"time"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/database"
	"github.com/backkem/doorlock/pkg/learn"
	"github.com/backkem/doorlock/pkg/usercred"
)

// Local requests come from the lock itself: a keypad, a display or the CLI.
// They run on the event loop with the local origin, so changes are reported
// to the lifeline only and errors are never reported on the network.

// SetUser adds, modifies or deletes a user.
func (n *Node) SetUser(op credential.OperationType, u credential.User) error {
	return n.do(func() error {
		return n.svc.SetUser(usercred.LocalOrigin, op, u)
	})
}

// SetCredential adds, modifies or deletes a credential.
func (n *Node) SetCredential(op credential.OperationType, c credential.Credential) error {
	return n.do(func() error {
		return n.svc.SetCredential(usercred.LocalOrigin, op, c)
	})
}

// SetAdminCode sets the admin PIN code. An empty code deactivates it.
func (n *Node) SetAdminCode(code credential.AdminCode) (usercred.AdminCodeResult, error) {
	var result usercred.AdminCodeResult
	err := n.do(func() error {
		var err error
		result, err = n.svc.SetAdminCode(usercred.LocalOrigin, code)
		return err
	})
	return result, err
}

// Reset erases every user, credential and the admin code.
func (n *Node) Reset() error {
	return n.do(n.svc.Reset)
}

// Users returns every stored user in UUID order.
func (n *Node) Users() ([]credential.User, error) {
	var users []credential.User
	err := n.do(func() error {
		for uuid, ok := n.db.NextUser(credential.UUIDInvalid); ok; uuid, ok = n.db.NextUser(uuid) {
			u, err := n.db.GetUser(uuid)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return nil
	})
	return users, err
}

// Credentials returns every stored credential in (type, slot) order.
func (n *Node) Credentials() ([]credential.Credential, error) {
	var creds []credential.Credential
	err := n.do(func() error {
		var key credential.CredentialKey
		for {
			var ok bool
			key, ok = n.db.NextCredential(key, database.CredentialFilter{})
			if !ok {
				return nil
			}
			c, err := n.db.GetCredential(key)
			if err != nil {
				return err
			}
			creds = append(creds, c)
		}
	})
	return creds, err
}

// Checksums holds the node's checksums. Fields for checksums the node's
// capabilities exclude are left empty.
type Checksums struct {
	AllUsers    *uint16
	Users       map[credential.UUID]uint16
	Credentials map[credential.CredentialType]uint16
}

// Checksums computes the all-users checksum, every per-user checksum and a
// checksum per supported credential type.
func (n *Node) Checksums() (Checksums, error) {
	var sums Checksums
	err := n.do(func() error {
		if v, err := n.svc.AllUsersChecksum(); err == nil {
			sums.AllUsers = &v
		} else if !errors.Is(err, usercred.ErrUnsupported) {
			return err
		}

		caps := n.svc.Capabilities()
		if caps.UserChecksum {
			sums.Users = make(map[credential.UUID]uint16)
			for uuid, ok := n.db.NextUser(credential.UUIDInvalid); ok; uuid, ok = n.db.NextUser(uuid) {
				v, err := n.svc.UserChecksum(uuid)
				if err != nil {
					return err
				}
				sums.Users[uuid] = v
			}
		}
		if caps.CredentialChecksum {
			sums.Credentials = make(map[credential.CredentialType]uint16, len(caps.Credentials))
			for _, tc := range caps.Credentials {
				v, err := n.svc.CredentialChecksum(tc.Type)
				if err != nil {
					return err
				}
				sums.Credentials[tc.Type] = v
			}
		}
		return nil
	})
	return sums, err
}

// Capabilities returns the node capabilities.
func (n *Node) Capabilities() credential.Capabilities {
	return n.svc.Capabilities()
}

// LearnStart begins a local enrollment.
func (n *Node) LearnStart(uuid credential.UUID, key credential.CredentialKey, op credential.OperationType, timeout time.Duration) error {
	return n.do(func() error {
		return n.learn.Start(usercred.LocalOrigin, learn.StartRequest{
			UUID:      uuid,
			Type:      key.Type,
			Slot:      key.Slot,
			Operation: op,
			Timeout:   timeout,
		})
	})
}

// LearnCancel aborts the running enrollment.
func (n *Node) LearnCancel() error {
	return n.do(func() error {
		return n.learn.Cancel(usercred.LocalOrigin)
	})
}

// LearnStepStarted reports that the sensor began a read.
func (n *Node) LearnStepStarted(remaining uint8) error {
	return n.do(func() error {
		n.learn.StepStarted(remaining)
		return nil
	})
}

// LearnStepRetry reports that a read must be repeated.
func (n *Node) LearnStepRetry(remaining uint8) error {
	return n.do(func() error {
		n.learn.StepRetry(remaining)
		return nil
	})
}

// LearnReadDone delivers the captured credential data.
func (n *Node) LearnReadDone(data []byte) error {
	return n.do(func() error {
		return n.learn.ReadDone(data)
	})
}

// LearnFailed reports that the sensor gave up.
func (n *Node) LearnFailed() error {
	return n.do(func() error {
		n.learn.Failed()
		return nil
	})
}

// LearnState returns the enrollment state.
func (n *Node) LearnState() (learn.State, error) {
	var s learn.State
	err := n.do(func() error {
		s = n.learn.State()
		return nil
	})
	return s, err
}

// Lifeline returns the lifeline group members.
func (n *Node) Lifeline() []uint16 {
	return n.group.Members()
}

// AddLifelineMember adds node to the lifeline group.
func (n *Node) AddLifelineMember(node uint16) error {
	return n.group.Add(node)
}

// RemoveLifelineMember removes node from the lifeline group.
func (n *Node) RemoveLifelineMember(node uint16) {
	n.group.Remove(node)
}
