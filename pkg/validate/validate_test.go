package validate

import (
	"errors"
	"testing"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/database"
	"github.com/backkem/doorlock/pkg/nvm"
)

func setup(t *testing.T) (*Validator, *database.Database) {
	t.Helper()
	db, err := database.Open(database.Config{Store: nvm.NewMemoryStore(), MaxUsers: 20, MaxCredentials: 50})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.AddUser(credential.User{
		UUID: 1, Type: credential.UserTypeProgramming, Active: true,
		CredentialRule: credential.CredentialRuleSingle, Name: []byte("Admin"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.AddCredential(pin(1, 1, "3494")); err != nil {
		t.Fatal(err)
	}
	return New(Config{Capabilities: credential.DefaultCapabilities()}, db), db
}

func pin(uuid credential.UUID, slot uint16, code string) credential.Credential {
	return credential.Credential{UUID: uuid, Type: credential.CredentialTypePINCode, Slot: slot, Data: []byte(code)}
}

func wantReason(t *testing.T, err error, want Reason) {
	t.Helper()
	if got := ReasonOf(err); got != want {
		t.Errorf("reason = %v (%v), want %v", got, err, want)
	}
}

func TestUser(t *testing.T) {
	v, _ := setup(t)
	base := credential.User{
		UUID: 2, Type: credential.UserTypeGeneral, Active: true,
		CredentialRule: credential.CredentialRuleSingle, Name: []byte("Bob"),
	}

	tests := []struct {
		name   string
		mutate func(u *credential.User)
		want   Reason
	}{
		{"valid", func(*credential.User) {}, 0},
		{"uuid zero", func(u *credential.User) { u.UUID = 0 }, ReasonUUID},
		{"uuid beyond max", func(u *credential.User) { u.UUID = 21 }, ReasonUUID},
		{"undefined type", func(u *credential.User) { u.Type = 2 }, ReasonUserType},
		{"unsupported rule", func(u *credential.User) { u.CredentialRule = credential.CredentialRuleTriple }, ReasonCredentialRule},
		{"name too long", func(u *credential.User) { u.Name = []byte("a name that is far too long") }, ReasonName},
		{"ascii high byte", func(u *credential.User) { u.Name = []byte{'B', 0xE9} }, ReasonNameEncoding},
		{"extended ascii", func(u *credential.User) {
			u.NameEncoding = credential.NameEncodingExtendedASCII
			u.Name = []byte{'B', 0xE9}
		}, 0},
		{"utf16 odd", func(u *credential.User) {
			u.NameEncoding = credential.NameEncodingUTF16
			u.Name = []byte{0x00, 'B', 0x00}
		}, ReasonNameEncoding},
		{"undefined encoding", func(u *credential.User) { u.NameEncoding = 3 }, ReasonNameEncoding},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := base.Clone()
			tc.mutate(&u)
			wantReason(t, v.User(u), tc.want)
		})
	}
}

func TestCredentialMetadata(t *testing.T) {
	v, _ := setup(t)

	tests := []struct {
		name string
		c    credential.Credential
		want Reason
	}{
		{"valid", pin(1, 2, "5070"), 0},
		{"unsupported type", credential.Credential{UUID: 1, Type: credential.CredentialTypeBLE, Slot: 1}, ReasonCredentialType},
		{"type none", credential.Credential{UUID: 1, Slot: 1}, ReasonCredentialType},
		{"uuid zero", pin(0, 2, "5070"), ReasonUUID},
		{"uuid beyond max", pin(30, 2, "5070"), ReasonUUID},
		{"slot zero", pin(1, 0, "5070"), ReasonSlot},
		{"slot beyond max", pin(1, 21, "5070"), ReasonSlot},
		{"unknown user", pin(5, 2, "5070"), ReasonUserNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wantReason(t, v.CredentialMetadata(tc.c), tc.want)
		})
	}
}

func TestCredentialData(t *testing.T) {
	v, db := setup(t)
	if err := db.SetAdminCode(credential.AdminCode("7310")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		c    credential.Credential
		want Reason
	}{
		{"valid", pin(1, 2, "5070"), 0},
		{"too short", pin(1, 2, "507"), ReasonLength},
		{"too long", pin(1, 2, "50705070507"), ReasonLength},
		{"not digits", pin(1, 2, "50a0"), ReasonContent},
		{"equals admin code", pin(1, 2, "7310"), ReasonAdminCodeMatch},
		{"duplicate", pin(1, 2, "3494"), ReasonDuplicate},
		{"resubmission", pin(1, 1, "3494"), 0},
		{"repeated digits", pin(1, 2, "8888"), ReasonSecurityRules},
		{"ascending", pin(1, 2, "3456"), ReasonSecurityRules},
		{"descending", pin(1, 2, "98765"), ReasonSecurityRules},
		{"password odd length", credential.Credential{UUID: 1, Type: credential.CredentialTypePassword, Slot: 1,
			Data: []byte{0, 'a', 0, 'b', 0}}, ReasonContent},
		{"rfid opaque", credential.Credential{UUID: 1, Type: credential.CredentialTypeRFIDCode, Slot: 1,
			Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}, 0},
		{"same data other type", credential.Credential{UUID: 1, Type: credential.CredentialTypeRFIDCode, Slot: 1,
			Data: []byte("3494")}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wantReason(t, v.CredentialData(tc.c), tc.want)
		})
	}

	t.Run("duplicate reports existing", func(t *testing.T) {
		var verr *Error
		if !errors.As(v.CredentialData(pin(1, 4, "3494")), &verr) || verr.Existing == nil {
			t.Fatalf("expected *Error with Existing")
		}
		if verr.Existing.Key() != (credential.CredentialKey{Type: credential.CredentialTypePINCode, Slot: 1}) || verr.Existing.UUID != 1 {
			t.Errorf("Existing = %v", verr.Existing)
		}
	})

	t.Run("hook cause is wrapped", func(t *testing.T) {
		if err := v.CredentialData(pin(1, 2, "8888")); !errors.Is(err, ErrRepeatedDigits) {
			t.Errorf("expected ErrRepeatedDigits, got %v", err)
		}
	})
}

func TestAdminCode(t *testing.T) {
	v, db := setup(t)

	tests := []struct {
		name string
		code string
		want Reason
	}{
		{"valid", "7310", 0},
		{"deactivate", "", ReasonAdminCodeIdentical},
		{"too short", "731", ReasonAdminCodeInvalid},
		{"too long", "73107310731", ReasonAdminCodeInvalid},
		{"not digits", "73x0", ReasonAdminCodeInvalid},
		{"held by credential", "3494", ReasonAdminCodeDuplicate},
		{"security rules", "1234", ReasonSecurityRules},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wantReason(t, v.AdminCode(credential.AdminCode(tc.code)), tc.want)
		})
	}

	if err := db.SetAdminCode(credential.AdminCode("7310")); err != nil {
		t.Fatal(err)
	}
	t.Run("identical to stored", func(t *testing.T) {
		wantReason(t, v.AdminCode(credential.AdminCode("7310")), ReasonAdminCodeIdentical)
	})
	t.Run("deactivate stored", func(t *testing.T) {
		wantReason(t, v.AdminCode(nil), 0)
	})

	t.Run("deactivation unsupported", func(t *testing.T) {
		caps := credential.DefaultCapabilities()
		caps.AdminCodeDeactivation = false
		v := New(Config{Capabilities: caps}, db)
		wantReason(t, v.AdminCode(nil), ReasonDeactivationUnsupported)
	})

	t.Run("admin code unsupported", func(t *testing.T) {
		caps := credential.DefaultCapabilities()
		caps.AdminCode = false
		v := New(Config{Capabilities: caps, Rules: NoSecurityRules{}}, db)
		wantReason(t, v.AdminCode(credential.AdminCode("5070")), ReasonAdminCodeUnsupported)
	})
}

func TestDefaultSecurityRules(t *testing.T) {
	rules := DefaultSecurityRules{}
	tests := []struct {
		code string
		want error
	}{
		{"1111", ErrRepeatedDigits},
		{"0123", ErrSequence},
		{"3210", ErrSequence},
		{"1357", nil},
		{"1", nil},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			if err := rules.CheckAdminCode(credential.AdminCode(tc.code)); !errors.Is(err, tc.want) {
				t.Errorf("CheckAdminCode(%q) = %v, want %v", tc.code, err, tc.want)
			}
		})
	}

	rfid := credential.Credential{Type: credential.CredentialTypeRFIDCode, Data: []byte("1111")}
	if err := rules.CheckCredential(rfid); err != nil {
		t.Errorf("non-PIN credential rejected: %v", err)
	}
}
