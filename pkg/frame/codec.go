package frame

import (
	"fmt"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/usercred"
)

// Encode serializes msg, including the [class, command] prefix. msg is one
// of the request or report types of this package or a usercred report.
func Encode(msg any) ([]byte, error) {
	var w *writer
	switch m := msg.(type) {
	case UserCapabilitiesGet:
		w = newWriter(CmdUserCapabilitiesGet, 0)
	case UserCapabilitiesReport:
		w = newWriter(CmdUserCapabilitiesReport, 6+len(m.UserTypeMask))
		w.u16(m.MaxUsers)
		w.u8(m.RuleMask)
		w.u8(m.MaxNameLength)
		w.u8(flag(m.Schedule, userCapSchedule) | flag(m.AllUsersChecksum, userCapAllChecksum) |
			flag(m.UserChecksum, userCapUserChecksum) | flag(m.ExpiringUsers, userCapExpiringUsers))
		if len(m.UserTypeMask) > 0xFF {
			return nil, fmt.Errorf("%w: user type mask of %d bytes", ErrFieldRange, len(m.UserTypeMask))
		}
		w.u8(uint8(len(m.UserTypeMask)))
		w.bytes(m.UserTypeMask)
	case CredentialCapabilitiesGet:
		w = newWriter(CmdCredentialCapabilitiesGet, 0)
	case CredentialCapabilitiesReport:
		if len(m.Types) > 0xFF {
			return nil, fmt.Errorf("%w: %d credential types", ErrFieldRange, len(m.Types))
		}
		w = newWriter(CmdCredentialCapabilitiesReport, 2+9*len(m.Types))
		w.u8(flag(m.CredentialChecksum, credCapChecksum) | flag(m.AdminCode, credCapAdminCode) |
			flag(m.AdminCodeDeactivation, credCapDeactivation))
		w.u8(uint8(len(m.Types)))
		for _, tc := range m.Types {
			w.u8(uint8(tc.Type))
			w.u8(flag(tc.LearnSupported, typeCapLearn) | flag(tc.ReadBack, typeCapReadBack))
			w.u16(tc.Slots)
			w.u8(tc.MinLength)
			w.u8(tc.MaxLength)
			w.u8(tc.LearnTimeout)
			w.u8(tc.LearnSteps)
			w.u8(tc.MaxHashLength)
		}
	case UserSet:
		if len(m.User.Name) > 0xFF {
			return nil, fmt.Errorf("%w: name of %d bytes", ErrFieldRange, len(m.User.Name))
		}
		w = newWriter(CmdUserSet, 10+len(m.User.Name))
		w.u8(uint8(m.Operation) & opMask)
		w.u16(uint16(m.User.UUID))
		writeUserBody(w, m.User)
	case UserGet:
		w = newWriter(CmdUserGet, 2)
		w.u16(uint16(m.UUID))
	case usercred.UserReport:
		if len(m.User.Name) > 0xFF {
			return nil, fmt.Errorf("%w: name of %d bytes", ErrFieldRange, len(m.User.Name))
		}
		w = newWriter(CmdUserReport, 15+len(m.User.Name))
		w.u8(uint8(m.Type))
		w.u16(uint16(m.Next))
		w.u8(uint8(m.User.Modifier.Type))
		w.u16(m.User.Modifier.Node)
		w.u16(uint16(m.User.UUID))
		writeUserBody(w, m.User)
	case CredentialSet:
		c := m.Credential
		if len(c.Data) > 0xFF {
			return nil, fmt.Errorf("%w: data of %d bytes", ErrFieldRange, len(c.Data))
		}
		w = newWriter(CmdCredentialSet, 7+len(c.Data))
		w.u16(uint16(c.UUID))
		w.u8(uint8(c.Type))
		w.u16(c.Slot)
		w.u8(uint8(m.Operation) & opMask)
		if len(c.Data) > 0 {
			w.u8(uint8(len(c.Data)))
			w.bytes(c.Data)
		}
	case CredentialGet:
		w = newWriter(CmdCredentialGet, 5)
		w.u16(uint16(m.UUID))
		w.u8(uint8(m.Key.Type))
		w.u16(m.Key.Slot)
	case usercred.CredentialReport:
		c := m.Credential
		if len(c.Data) > 0xFF {
			return nil, fmt.Errorf("%w: data of %d bytes", ErrFieldRange, len(c.Data))
		}
		w = newWriter(CmdCredentialReport, 14+len(c.Data))
		w.u8(uint8(m.Type))
		w.u16(uint16(c.UUID))
		w.u8(uint8(c.Type))
		w.u16(c.Slot)
		w.u8(flag(m.ReadBack, crbMask))
		w.u8(uint8(len(c.Data)))
		w.bytes(c.Data)
		w.u8(uint8(c.Modifier.Type))
		w.u16(c.Modifier.Node)
		w.u8(uint8(m.Next.Type))
		w.u16(m.Next.Slot)
	case CredentialLearnStart:
		w = newWriter(CmdCredentialLearnStart, 7)
		w.u16(uint16(m.UUID))
		w.u8(uint8(m.Key.Type))
		w.u16(m.Key.Slot)
		w.u8(uint8(m.Operation) & opMask)
		w.u8(m.Timeout)
	case CredentialLearnCancel:
		w = newWriter(CmdCredentialLearnCancel, 0)
	case usercred.LearnReport:
		w = newWriter(CmdCredentialLearnReport, 7)
		w.u8(uint8(m.Status))
		w.u16(uint16(m.UUID))
		w.u8(uint8(m.Type))
		w.u16(m.Slot)
		w.u8(m.StepsRemaining)
	case AssociationSet:
		w = newWriter(CmdUserCredentialAssociationSet, 7)
		writeAssociation(w, usercred.AssociationRequest(m))
	case usercred.AssociationReport:
		w = newWriter(CmdUserCredentialAssociationReport, 8)
		writeAssociation(w, usercred.AssociationRequest{Type: m.Type, SrcSlot: m.SrcSlot, DstUUID: m.DstUUID, DstSlot: m.DstSlot})
		w.u8(uint8(m.Status))
	case AllUsersChecksumGet:
		w = newWriter(CmdAllUsersChecksumGet, 0)
	case AllUsersChecksumReport:
		w = newWriter(CmdAllUsersChecksumReport, 2)
		w.u16(m.Checksum)
	case UserChecksumGet:
		w = newWriter(CmdUserChecksumGet, 2)
		w.u16(uint16(m.UUID))
	case UserChecksumReport:
		w = newWriter(CmdUserChecksumReport, 4)
		w.u16(uint16(m.UUID))
		w.u16(m.Checksum)
	case CredentialChecksumGet:
		w = newWriter(CmdCredentialChecksumGet, 1)
		w.u8(uint8(m.Type))
	case CredentialChecksumReport:
		w = newWriter(CmdCredentialChecksumReport, 3)
		w.u8(uint8(m.Type))
		w.u16(m.Checksum)
	case AdminPinCodeSet:
		if len(m.Code) > int(adminLenMask) {
			return nil, fmt.Errorf("%w: admin code of %d bytes", ErrFieldRange, len(m.Code))
		}
		w = newWriter(CmdAdminPinCodeSet, 1+len(m.Code))
		w.u8(uint8(len(m.Code)))
		w.bytes(m.Code)
	case AdminPinCodeGet:
		w = newWriter(CmdAdminPinCodeGet, 0)
	case usercred.AdminCodeReport:
		if len(m.Code) > int(adminLenMask) || m.Result > 0x0F {
			return nil, fmt.Errorf("%w: admin code report", ErrFieldRange)
		}
		w = newWriter(CmdAdminPinCodeReport, 1+len(m.Code))
		w.u8(uint8(m.Result)<<4 | uint8(len(m.Code)))
		w.bytes(m.Code)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnencodable, msg)
	}
	return w.buf, nil
}

// writeUserBody writes the user fields that follow the UUID in both
// User Set and User Report.
func writeUserBody(w *writer, u credential.User) {
	w.u8(uint8(u.Type))
	w.u8(flag(u.Active, activeMask))
	w.u8(uint8(u.CredentialRule))
	w.u16(u.ExpiringMinutes)
	w.u8(uint8(u.NameEncoding) & encodingMask)
	w.u8(uint8(len(u.Name)))
	w.bytes(u.Name)
}

func writeAssociation(w *writer, a usercred.AssociationRequest) {
	w.u8(uint8(a.Type))
	w.u16(a.SrcSlot)
	w.u16(uint16(a.DstUUID))
	w.u16(a.DstSlot)
}

// Decode parses a frame into its request or report value.
//
// Fixed-size frames may carry trailing bytes, which are ignored. Frames
// ending in a declared length must end exactly after that many bytes.
func Decode(b []byte) (any, error) {
	cmd, err := Header(b)
	if err != nil {
		return nil, err
	}
	r := &reader{buf: b[HeaderSize:]}

	var msg any
	switch cmd {
	case CmdUserCapabilitiesGet:
		msg = UserCapabilitiesGet{}
	case CmdUserCapabilitiesReport:
		m := UserCapabilitiesReport{MaxUsers: r.u16(), RuleMask: r.u8(), MaxNameLength: r.u8()}
		flags := r.u8()
		m.Schedule = flags&userCapSchedule != 0
		m.AllUsersChecksum = flags&userCapAllChecksum != 0
		m.UserChecksum = flags&userCapUserChecksum != 0
		m.ExpiringUsers = flags&userCapExpiringUsers != 0
		m.UserTypeMask = r.block()
		msg = m
	case CmdCredentialCapabilitiesGet:
		msg = CredentialCapabilitiesGet{}
	case CmdCredentialCapabilitiesReport:
		flags := r.u8()
		m := CredentialCapabilitiesReport{
			CredentialChecksum:    flags&credCapChecksum != 0,
			AdminCode:             flags&credCapAdminCode != 0,
			AdminCodeDeactivation: flags&credCapDeactivation != 0,
		}
		n := int(r.u8())
		for i := 0; i < n && r.err == nil; i++ {
			tc := credential.TypeCapabilities{Type: credential.CredentialType(r.u8())}
			props := r.u8()
			tc.LearnSupported = props&typeCapLearn != 0
			tc.ReadBack = props&typeCapReadBack != 0
			tc.Slots = r.u16()
			tc.MinLength = r.u8()
			tc.MaxLength = r.u8()
			tc.LearnTimeout = r.u8()
			tc.LearnSteps = r.u8()
			tc.MaxHashLength = r.u8()
			m.Types = append(m.Types, tc)
		}
		msg = m
	case CmdUserSet:
		m := UserSet{Operation: credential.OperationType(r.u8() & opMask)}
		m.User.UUID = credential.UUID(r.u16())
		readUserBody(r, &m.User)
		msg = m
	case CmdUserGet:
		msg = UserGet{UUID: credential.UUID(r.u16())}
	case CmdUserReport:
		m := usercred.UserReport{Type: usercred.UserReportType(r.u8()), Next: credential.UUID(r.u16())}
		m.User.Modifier.Type = credential.ModifierType(r.u8())
		m.User.Modifier.Node = r.u16()
		m.User.UUID = credential.UUID(r.u16())
		readUserBody(r, &m.User)
		msg = m
	case CmdCredentialSet:
		m := CredentialSet{}
		m.Credential.UUID = credential.UUID(r.u16())
		m.Credential.Type = credential.CredentialType(r.u8())
		m.Credential.Slot = r.u16()
		m.Operation = credential.OperationType(r.u8() & opMask)
		if r.err == nil && r.remaining() > 0 {
			m.Credential.Data = r.block()
		}
		msg = m
	case CmdCredentialGet:
		m := CredentialGet{UUID: credential.UUID(r.u16())}
		m.Key.Type = credential.CredentialType(r.u8())
		m.Key.Slot = r.u16()
		msg = m
	case CmdCredentialReport:
		m := usercred.CredentialReport{Type: usercred.CredentialReportType(r.u8())}
		c := &m.Credential
		c.UUID = credential.UUID(r.u16())
		c.Type = credential.CredentialType(r.u8())
		c.Slot = r.u16()
		m.ReadBack = r.u8()&crbMask != 0
		c.Data = r.bytes(int(r.u8()))
		c.Modifier.Type = credential.ModifierType(r.u8())
		c.Modifier.Node = r.u16()
		m.Next.Type = credential.CredentialType(r.u8())
		m.Next.Slot = r.u16()
		msg = m
	case CmdCredentialLearnStart:
		m := CredentialLearnStart{UUID: credential.UUID(r.u16())}
		m.Key.Type = credential.CredentialType(r.u8())
		m.Key.Slot = r.u16()
		m.Operation = credential.OperationType(r.u8() & opMask)
		m.Timeout = r.u8()
		msg = m
	case CmdCredentialLearnCancel:
		msg = CredentialLearnCancel{}
	case CmdCredentialLearnReport:
		msg = usercred.LearnReport{
			Status:         usercred.LearnStatus(r.u8()),
			UUID:           credential.UUID(r.u16()),
			Type:           credential.CredentialType(r.u8()),
			Slot:           r.u16(),
			StepsRemaining: r.u8(),
		}
	case CmdUserCredentialAssociationSet:
		msg = AssociationSet(readAssociation(r))
	case CmdUserCredentialAssociationReport:
		a := readAssociation(r)
		msg = usercred.AssociationReport{
			Type:    a.Type,
			SrcSlot: a.SrcSlot,
			DstUUID: a.DstUUID,
			DstSlot: a.DstSlot,
			Status:  usercred.AssociationStatus(r.u8()),
		}
	case CmdAllUsersChecksumGet:
		msg = AllUsersChecksumGet{}
	case CmdAllUsersChecksumReport:
		msg = AllUsersChecksumReport{Checksum: r.u16()}
	case CmdUserChecksumGet:
		msg = UserChecksumGet{UUID: credential.UUID(r.u16())}
	case CmdUserChecksumReport:
		msg = UserChecksumReport{UUID: credential.UUID(r.u16()), Checksum: r.u16()}
	case CmdCredentialChecksumGet:
		msg = CredentialChecksumGet{Type: credential.CredentialType(r.u8())}
	case CmdCredentialChecksumReport:
		msg = CredentialChecksumReport{Type: credential.CredentialType(r.u8()), Checksum: r.u16()}
	case CmdAdminPinCodeSet:
		n := int(r.u8() & adminLenMask)
		if r.err == nil && n != r.remaining() {
			return nil, fmt.Errorf("%w: admin code length %d, %d bytes follow", ErrLengthMismatch, n, r.remaining())
		}
		msg = AdminPinCodeSet{Code: credential.AdminCode(r.bytes(n))}
	case CmdAdminPinCodeGet:
		msg = AdminPinCodeGet{}
	case CmdAdminPinCodeReport:
		props := r.u8()
		msg = usercred.AdminCodeReport{
			Result: usercred.AdminCodeResult(props >> 4),
			Code:   credential.AdminCode(r.bytes(int(props & adminLenMask))),
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}

	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, r.err)
	}
	return msg, nil
}

func readUserBody(r *reader, u *credential.User) {
	u.Type = credential.UserType(r.u8())
	u.Active = r.u8()&activeMask != 0
	u.CredentialRule = credential.CredentialRule(r.u8())
	u.ExpiringMinutes = r.u16()
	u.NameEncoding = credential.NameEncoding(r.u8() & encodingMask)
	u.Name = r.block()
}

func readAssociation(r *reader) usercred.AssociationRequest {
	return usercred.AssociationRequest{
		Type:    credential.CredentialType(r.u8()),
		SrcSlot: r.u16(),
		DstUUID: credential.UUID(r.u16()),
		DstSlot: r.u16(),
	}
}
