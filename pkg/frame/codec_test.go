package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/usercred"
	"github.com/google/go-cmp/cmp"
)

func TestEncode_Bytes(t *testing.T) {
	tests := []struct {
		name string
		msg  any
		want []byte
	}{
		{
			name: "UserSet",
			msg: UserSet{
				Operation: credential.OperationAdd,
				User: credential.User{
					UUID:           1,
					Type:           credential.UserTypeProgramming,
					Active:         true,
					CredentialRule: credential.CredentialRuleSingle,
					NameEncoding:   credential.NameEncodingASCII,
					Name:           []byte("Admin"),
				},
			},
			want: []byte{0x83, 0x05, 0x00, 0x00, 0x01, 0x03, 0x01, 0x01, 0x00, 0x00, 0x00, 0x05, 'A', 'd', 'm', 'i', 'n'},
		},
		{
			name: "CredentialSet",
			msg: CredentialSet{
				Operation:  credential.OperationAdd,
				Credential: credential.Credential{UUID: 1, Type: credential.CredentialTypePINCode, Slot: 1, Data: []byte("3494")},
			},
			want: []byte{0x83, 0x0A, 0x00, 0x01, 0x01, 0x00, 0x01, 0x00, 0x04, '3', '4', '9', '4'},
		},
		{
			name: "CredentialSet delete without data",
			msg: CredentialSet{
				Operation:  credential.OperationDelete,
				Credential: credential.Credential{UUID: 1, Type: credential.CredentialTypePINCode, Slot: 1},
			},
			want: []byte{0x83, 0x0A, 0x00, 0x01, 0x01, 0x00, 0x01, 0x02},
		},
		{
			name: "CredentialReport",
			msg: usercred.CredentialReport{
				Type: usercred.CredentialAdded,
				Credential: credential.Credential{
					UUID: 1, Type: credential.CredentialTypePINCode, Slot: 1, Data: []byte("3494"),
					Modifier: credential.Modifier{Type: credential.ModifierZWave, Node: 5},
				},
				ReadBack: true,
				Next:     credential.CredentialKey{Type: credential.CredentialTypePINCode, Slot: 7},
			},
			want: []byte{0x83, 0x0C, 0x00, 0x00, 0x01, 0x01, 0x00, 0x01, 0x80, 0x04, '3', '4', '9', '4',
				0x02, 0x00, 0x05, 0x01, 0x00, 0x07},
		},
		{
			name: "UserReport",
			msg: usercred.UserReport{
				Type: usercred.UserResponseToGet,
				User: credential.User{
					UUID: 2, Type: credential.UserTypeExpiring, CredentialRule: credential.CredentialRuleDual,
					ExpiringMinutes: 0x012C, NameEncoding: credential.NameEncodingUTF16, Name: []byte{0x00, 'B'},
					Modifier: credential.Modifier{Type: credential.ModifierLocal},
				},
				Next: 9,
			},
			want: []byte{0x83, 0x07, 0x04, 0x00, 0x09, 0x03, 0x00, 0x00, 0x00, 0x02, 0x07, 0x00, 0x02,
				0x01, 0x2C, 0x02, 0x02, 0x00, 'B'},
		},
		{
			name: "LearnReport",
			msg: usercred.LearnReport{
				Status: usercred.LearnStepRetry, UUID: 3, Type: credential.CredentialTypeFingerBiometric,
				Slot: 2, StepsRemaining: 2,
			},
			want: []byte{0x83, 0x11, 0x05, 0x00, 0x03, 0x09, 0x00, 0x02, 0x02},
		},
		{
			name: "AssociationReport",
			msg: usercred.AssociationReport{
				Type: credential.CredentialTypePINCode, SrcSlot: 1, DstUUID: 2, DstSlot: 3,
				Status: usercred.AssociationDestinationSlotOccupied,
			},
			want: []byte{0x83, 0x13, 0x01, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03, 0x07},
		},
		{
			name: "AdminPinCodeReport",
			msg:  usercred.AdminCodeReport{Result: usercred.AdminCodeResponseToGet, Code: credential.AdminCode("5070")},
			want: []byte{0x83, 0x1C, 0x44, '5', '0', '7', '0'},
		},
		{
			name: "AdminPinCodeSet deactivate",
			msg:  AdminPinCodeSet{},
			want: []byte{0x83, 0x1A, 0x00},
		},
		{
			name: "UserChecksumReport",
			msg:  UserChecksumReport{UUID: 1, Checksum: 0xE5CC},
			want: []byte{0x83, 0x17, 0x00, 0x01, 0xE5, 0xCC},
		},
		{
			name: "CredentialCapabilitiesReport",
			msg: CredentialCapabilitiesReport{
				CredentialChecksum: true,
				AdminCode:          true,
				Types: []credential.TypeCapabilities{{
					Type: credential.CredentialTypeFingerBiometric, Slots: 10, MinLength: 1, MaxLength: 64,
					LearnSupported: true, LearnTimeout: 20, LearnSteps: 3,
				}},
			},
			want: []byte{0x83, 0x04, 0xC0, 0x01, 0x09, 0x80, 0x00, 0x0A, 0x01, 0x40, 0x14, 0x03, 0x00},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
			back, err := Decode(got)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(tt.msg, back); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_UserCapabilities(t *testing.T) {
	caps := credential.DefaultCapabilities()
	got, err := Encode(NewUserCapabilitiesReport(caps))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// General, Programming, NonAccess, Duress, Disposable, Expiring in byte 0, RemoteOnly in byte 1.
	want := []byte{0x83, 0x02, 0x00, 0x14, 0x06, 0x10, 0x70, 0x02, 0xF9, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % X, want % X", got, want)
	}
}

func TestEncode_Errors(t *testing.T) {
	tests := []struct {
		name string
		msg  any
		want error
	}{
		{"unsupported value", struct{}{}, ErrUnencodable},
		{"long admin code", AdminPinCodeSet{Code: make(credential.AdminCode, 16)}, ErrFieldRange},
		{"long name", UserSet{User: credential.User{Name: make([]byte, 256)}}, ErrFieldRange},
		{"long data", CredentialSet{Credential: credential.Credential{Data: make([]byte, 256)}}, ErrFieldRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.msg); !errors.Is(err, tt.want) {
				t.Errorf("Encode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_Requests(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  any
	}{
		{"UserCapabilitiesGet", []byte{0x83, 0x01}, UserCapabilitiesGet{}},
		{"UserGet first", []byte{0x83, 0x06, 0x00, 0x00}, UserGet{}},
		{"UserGet trailing bytes", []byte{0x83, 0x06, 0x00, 0x02, 0xFF}, UserGet{UUID: 2}},
		{
			"CredentialGet",
			[]byte{0x83, 0x0B, 0x00, 0x01, 0x01, 0x00, 0x01},
			CredentialGet{UUID: 1, Key: credential.CredentialKey{Type: credential.CredentialTypePINCode, Slot: 1}},
		},
		{
			"CredentialLearnStart",
			[]byte{0x83, 0x0F, 0x00, 0x03, 0x09, 0x00, 0x02, 0x00, 0x0A},
			CredentialLearnStart{
				UUID: 3, Key: credential.CredentialKey{Type: credential.CredentialTypeFingerBiometric, Slot: 2},
				Operation: credential.OperationAdd, Timeout: 10,
			},
		},
		{"CredentialLearnCancel", []byte{0x83, 0x10}, CredentialLearnCancel{}},
		{
			"AssociationSet",
			[]byte{0x83, 0x12, 0x01, 0x00, 0x01, 0x00, 0x02, 0x00, 0x05},
			AssociationSet{Type: credential.CredentialTypePINCode, SrcSlot: 1, DstUUID: 2, DstSlot: 5},
		},
		{"AllUsersChecksumGet", []byte{0x83, 0x14}, AllUsersChecksumGet{}},
		{"CredentialChecksumGet", []byte{0x83, 0x18, 0x02}, CredentialChecksumGet{Type: credential.CredentialTypePassword}},
		{"AdminPinCodeSet", []byte{0x83, 0x1A, 0x04, '7', '3', '1', '0'}, AdminPinCodeSet{Code: credential.AdminCode("7310")}},
		{"AdminPinCodeGet", []byte{0x83, 0x1B}, AdminPinCodeGet{}},
		{
			"UserSet operation bits only",
			[]byte{0x83, 0x05, 0xFE, 0x00, 0x04, 0x00, 0xFF, 0x01, 0x00, 0x00, 0xF8, 0x00},
			UserSet{
				Operation: credential.OperationDelete,
				User:      credential.User{UUID: 4, Active: true, CredentialRule: credential.CredentialRuleSingle},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.frame)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrTruncated},
		{"class only", []byte{0x83}, ErrTruncated},
		{"wrong class", []byte{0x62, 0x01}, ErrWrongClass},
		{"unknown command", []byte{0x83, 0x08}, ErrUnknownCommand},
		{"short UserGet", []byte{0x83, 0x06, 0x00}, ErrTruncated},
		{"short CredentialSet", []byte{0x83, 0x0A, 0x00, 0x01, 0x01, 0x00}, ErrTruncated},
		{"CredentialSet length exceeds frame", []byte{0x83, 0x0A, 0x00, 0x01, 0x01, 0x00, 0x01, 0x00, 0x05, '1', '2'}, ErrLengthMismatch},
		{"CredentialSet length below frame", []byte{0x83, 0x0A, 0x00, 0x01, 0x01, 0x00, 0x01, 0x00, 0x01, '1', '2'}, ErrLengthMismatch},
		{"UserSet name length mismatch", []byte{0x83, 0x05, 0x00, 0x00, 0x01, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 0x03, 'a'}, ErrLengthMismatch},
		{"AdminPinCodeSet length mismatch", []byte{0x83, 0x1A, 0x04, '1', '2'}, ErrLengthMismatch},
		{"short CredentialReport", []byte{0x83, 0x0C, 0x00, 0x00, 0x01, 0x01, 0x00, 0x01, 0x80, 0x04, '3'}, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.frame); !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_CredentialSetWithoutData(t *testing.T) {
	got, err := Decode([]byte{0x83, 0x0A, 0x00, 0x01, 0x01, 0x00, 0x01, 0x01})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	set, ok := got.(CredentialSet)
	if !ok {
		t.Fatalf("Decode() = %T, want CredentialSet", got)
	}
	if set.Operation != credential.OperationModify || len(set.Credential.Data) != 0 {
		t.Errorf("Decode() = %+v, want Modify with no data", set)
	}
}

func TestHeader(t *testing.T) {
	cmd, err := Header([]byte{0x83, 0x1C, 0x44})
	if err != nil {
		t.Fatalf("Header() error = %v", err)
	}
	if cmd != CmdAdminPinCodeReport {
		t.Errorf("Header() = %v, want %v", cmd, CmdAdminPinCodeReport)
	}
	if got := Command(0x7F).String(); got != "Command(0x7F)" {
		t.Errorf("String() = %q", got)
	}
}
