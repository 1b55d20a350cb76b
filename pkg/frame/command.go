// Package frame encodes and decodes User Credential command class frames.
//
// Every frame starts with the command class byte and the command byte.
// Multi-byte fields are big-endian. Requests decode into the types of this
// package; reports encode from the usercred report types and the
// capability and checksum reports defined here.
package frame

import (
	"errors"
	"fmt"
)

// Class is COMMAND_CLASS_USER_CREDENTIAL.
const Class uint8 = 0x83

// HeaderSize is the size of the [class, command] prefix.
const HeaderSize = 2

// Command identifies a frame within the command class.
type Command uint8

// Commands.
const (
	CmdUserCapabilitiesGet             Command = 0x01
	CmdUserCapabilitiesReport          Command = 0x02
	CmdCredentialCapabilitiesGet       Command = 0x03
	CmdCredentialCapabilitiesReport    Command = 0x04
	CmdUserSet                         Command = 0x05
	CmdUserGet                         Command = 0x06
	CmdUserReport                      Command = 0x07
	CmdCredentialSet                   Command = 0x0A
	CmdCredentialGet                   Command = 0x0B
	CmdCredentialReport                Command = 0x0C
	CmdCredentialLearnStart            Command = 0x0F
	CmdCredentialLearnCancel           Command = 0x10
	CmdCredentialLearnReport           Command = 0x11
	CmdUserCredentialAssociationSet    Command = 0x12
	CmdUserCredentialAssociationReport Command = 0x13
	CmdAllUsersChecksumGet             Command = 0x14
	CmdAllUsersChecksumReport          Command = 0x15
	CmdUserChecksumGet                 Command = 0x16
	CmdUserChecksumReport              Command = 0x17
	CmdCredentialChecksumGet           Command = 0x18
	CmdCredentialChecksumReport        Command = 0x19
	CmdAdminPinCodeSet                 Command = 0x1A
	CmdAdminPinCodeGet                 Command = 0x1B
	CmdAdminPinCodeReport              Command = 0x1C
)

var commandNames = map[Command]string{
	CmdUserCapabilitiesGet:             "UserCapabilitiesGet",
	CmdUserCapabilitiesReport:          "UserCapabilitiesReport",
	CmdCredentialCapabilitiesGet:       "CredentialCapabilitiesGet",
	CmdCredentialCapabilitiesReport:    "CredentialCapabilitiesReport",
	CmdUserSet:                         "UserSet",
	CmdUserGet:                         "UserGet",
	CmdUserReport:                      "UserReport",
	CmdCredentialSet:                   "CredentialSet",
	CmdCredentialGet:                   "CredentialGet",
	CmdCredentialReport:                "CredentialReport",
	CmdCredentialLearnStart:            "CredentialLearnStart",
	CmdCredentialLearnCancel:           "CredentialLearnCancel",
	CmdCredentialLearnReport:           "CredentialLearnReport",
	CmdUserCredentialAssociationSet:    "UserCredentialAssociationSet",
	CmdUserCredentialAssociationReport: "UserCredentialAssociationReport",
	CmdAllUsersChecksumGet:             "AllUsersChecksumGet",
	CmdAllUsersChecksumReport:          "AllUsersChecksumReport",
	CmdUserChecksumGet:                 "UserChecksumGet",
	CmdUserChecksumReport:              "UserChecksumReport",
	CmdCredentialChecksumGet:           "CredentialChecksumGet",
	CmdCredentialChecksumReport:        "CredentialChecksumReport",
	CmdAdminPinCodeSet:                 "AdminPinCodeSet",
	CmdAdminPinCodeGet:                 "AdminPinCodeGet",
	CmdAdminPinCodeReport:              "AdminPinCodeReport",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Command(0x%02X)", uint8(c))
}

// Codec errors.
var (
	ErrTruncated      = errors.New("frame: truncated")
	ErrLengthMismatch = errors.New("frame: declared length does not match frame")
	ErrUnknownCommand = errors.New("frame: unknown command")
	ErrWrongClass     = errors.New("frame: not a user credential frame")
	ErrUnencodable    = errors.New("frame: value has no frame encoding")
	ErrFieldRange     = errors.New("frame: field out of range")
)

// Header returns the command class and command of b without decoding the body.
func Header(b []byte) (Command, error) {
	if len(b) < HeaderSize {
		return 0, ErrTruncated
	}
	if b[0] != Class {
		return 0, fmt.Errorf("%w: class 0x%02X", ErrWrongClass, b[0])
	}
	return Command(b[1]), nil
}
