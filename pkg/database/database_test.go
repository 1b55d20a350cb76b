package database

import (
	"bytes"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/nvm"
)

func openTestDB(t *testing.T, store nvm.Store, users, creds uint16) *Database {
	t.Helper()
	db, err := Open(Config{Store: store, MaxUsers: users, MaxCredentials: creds})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return db
}

func testUser(uuid credential.UUID, name string) credential.User {
	return credential.User{
		UUID:           uuid,
		Type:           credential.UserTypeGeneral,
		Active:         true,
		CredentialRule: credential.CredentialRuleSingle,
		NameEncoding:   credential.NameEncodingASCII,
		Name:           []byte(name),
		Modifier:       credential.Modifier{Type: credential.ModifierZWave, Node: 1},
	}
}

func testPIN(uuid credential.UUID, slot uint16, pin string) credential.Credential {
	return credential.Credential{
		UUID:     uuid,
		Type:     credential.CredentialTypePINCode,
		Slot:     slot,
		Data:     []byte(pin),
		Modifier: credential.Modifier{Type: credential.ModifierZWave, Node: 1},
	}
}

func userOrder(db *Database) []credential.UUID {
	var out []credential.UUID
	for u, ok := db.NextUser(0); ok; u, ok = db.NextUser(u) {
		out = append(out, u)
	}
	return out
}

func TestOpen(t *testing.T) {
	t.Run("store required", func(t *testing.T) {
		if _, err := Open(Config{}); err == nil {
			t.Error("expected error without store")
		}
	})

	t.Run("formats empty store", func(t *testing.T) {
		store := nvm.NewMemoryStore()
		db := openTestDB(t, store, 0, 0)
		if db.UserCapacity() != DefaultMaxUsers || db.CredentialCapacity() != DefaultMaxCredentials {
			t.Errorf("capacities = %d/%d, want defaults", db.UserCapacity(), db.CredentialCapacity())
		}
		for _, id := range []nvm.FileID{FileUserArea, FileCredentialArea, FileAdminCode,
			FileUserDescriptors, FileCredentialDescriptors} {
			if _, err := store.Read(id); err != nil {
				t.Errorf("record %s missing after format: %v", id, err)
			}
		}
	})

	t.Run("clamps capacity", func(t *testing.T) {
		db := openTestDB(t, nvm.NewMemoryStore(), 0xFFFF, 0xFFFF)
		if db.UserCapacity() != MaxObjects || db.CredentialCapacity() != MaxObjects {
			t.Errorf("capacities = %d/%d, want %d", db.UserCapacity(), db.CredentialCapacity(), MaxObjects)
		}
	})
}

func TestUser_RoundTrip(t *testing.T) {
	db := openTestDB(t, nvm.NewMemoryStore(), 5, 5)

	u := testUser(1, "Admin")
	u.Type = credential.UserTypeProgramming
	if err := db.AddUser(u); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	got, err := db.GetUser(1)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !reflect.DeepEqual(got, u) {
		t.Errorf("GetUser = %+v, want %+v", got, u)
	}

	// Returned user must not alias stored data
	got.Name[0] = 'X'
	again, _ := db.GetUser(1)
	if string(again.Name) != "Admin" {
		t.Error("GetUser should return a copy")
	}

	if _, err := db.GetUser(2); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(2): expected ErrNotFound, got %v", err)
	}
}

func TestUser_AddResults(t *testing.T) {
	store := nvm.NewMemoryStore()
	db := openTestDB(t, store, 5, 5)

	u := testUser(7, "Ann")
	if err := db.AddUser(u); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	t.Run("identical", func(t *testing.T) {
		before := store.Writes()
		again := u.Clone()
		again.Modifier = credential.Modifier{Type: credential.ModifierLocal}
		if err := db.AddUser(again); !errors.Is(err, ErrIdentical) {
			t.Fatalf("expected ErrIdentical, got %v", err)
		}
		if store.Writes() != before {
			t.Error("identical add must not write")
		}
	})

	t.Run("occupied", func(t *testing.T) {
		if err := db.AddUser(testUser(7, "Bob")); !errors.Is(err, ErrOccupied) {
			t.Errorf("expected ErrOccupied, got %v", err)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		if err := db.AddUser(testUser(0, "Zero")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
	})
}

func TestUser_Capacity(t *testing.T) {
	store := nvm.NewMemoryStore()
	db := openTestDB(t, store, 3, 3)

	for i := 1; i <= 3; i++ {
		if err := db.AddUser(testUser(credential.UUID(i), "u")); err != nil {
			t.Fatalf("AddUser %d failed: %v", i, err)
		}
	}

	before := store.Snapshot()
	if err := db.AddUser(testUser(4, "u")); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if !reflect.DeepEqual(before, store.Snapshot()) {
		t.Error("failed add must leave storage unchanged")
	}
	if db.UserCount() != 3 {
		t.Errorf("UserCount = %d, want 3", db.UserCount())
	}
}

func TestUser_OrderedUnderChurn(t *testing.T) {
	db := openTestDB(t, nvm.NewMemoryStore(), 32, 1)
	rng := rand.New(rand.NewSource(42))
	present := map[credential.UUID]bool{}

	for step := 0; step < 500; step++ {
		uuid := credential.UUID(rng.Intn(60) + 1)
		if present[uuid] {
			if err := db.DeleteUser(uuid); err != nil {
				t.Fatalf("step %d: DeleteUser(%d) failed: %v", step, uuid, err)
			}
			delete(present, uuid)
		} else {
			err := db.AddUser(testUser(uuid, "churn"))
			if errors.Is(err, ErrFull) {
				continue
			}
			if err != nil {
				t.Fatalf("step %d: AddUser(%d) failed: %v", step, uuid, err)
			}
			present[uuid] = true
		}

		order := userOrder(db)
		if len(order) != len(present) {
			t.Fatalf("step %d: walk has %d users, want %d", step, len(order), len(present))
		}
		for i := 1; i < len(order); i++ {
			if order[i-1] >= order[i] {
				t.Fatalf("step %d: walk not ascending: %v", step, order)
			}
		}
		ds := db.UserDescriptors()
		offsets := map[uint16]bool{}
		for i, d := range ds {
			if d.UUID != order[i] {
				t.Fatalf("step %d: descriptor %d is %d, walk says %d", step, i, d.UUID, order[i])
			}
			if offsets[d.Offset] {
				t.Fatalf("step %d: offset %d used twice", step, d.Offset)
			}
			offsets[d.Offset] = true
		}
	}
}

func TestUser_OffsetReuseIsCircular(t *testing.T) {
	db := openTestDB(t, nvm.NewMemoryStore(), 4, 1)

	for _, uuid := range []credential.UUID{10, 20, 30} {
		if err := db.AddUser(testUser(uuid, "")); err != nil {
			t.Fatalf("AddUser(%d) failed: %v", uuid, err)
		}
	}
	if err := db.DeleteUser(20); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	offsetOf := func(uuid credential.UUID) uint16 {
		for _, d := range db.UserDescriptors() {
			if d.UUID == uuid {
				return d.Offset
			}
		}
		t.Fatalf("uuid %d not found", uuid)
		return 0
	}

	// Head is past offset 2, so the next object lands on 3, not on the freed 1.
	if err := db.AddUser(testUser(5, "")); err != nil {
		t.Fatalf("AddUser(5) failed: %v", err)
	}
	if off := offsetOf(5); off != 3 {
		t.Errorf("user 5 offset = %d, want 3", off)
	}

	// The scan wraps and finds the freed offset.
	if err := db.AddUser(testUser(40, "")); err != nil {
		t.Fatalf("AddUser(40) failed: %v", err)
	}
	if off := offsetOf(40); off != 1 {
		t.Errorf("user 40 offset = %d, want 1", off)
	}

	// Array position follows the key, not the offset.
	want := []credential.UUID{5, 10, 30, 40}
	if got := userOrder(db); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestUser_Modify(t *testing.T) {
	store := nvm.NewMemoryStore()
	db := openTestDB(t, store, 5, 5)

	if err := db.ModifyUser(testUser(1, "x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	u := testUser(1, "Ann")
	_ = db.AddUser(u)
	offset := db.UserDescriptors()[0].Offset

	if err := db.ModifyUser(u); !errors.Is(err, ErrIdentical) {
		t.Fatalf("expected ErrIdentical, got %v", err)
	}

	u.Name = []byte("Annabelle")
	u.Active = false
	if err := db.ModifyUser(u); err != nil {
		t.Fatalf("ModifyUser failed: %v", err)
	}
	got, _ := db.GetUser(1)
	if !reflect.DeepEqual(got, u) {
		t.Errorf("GetUser = %+v, want %+v", got, u)
	}
	if db.UserDescriptors()[0].Offset != offset {
		t.Error("modify must keep the object offset")
	}
}

func TestUser_WriteFailureRollsBack(t *testing.T) {
	cases := []struct {
		name string
		id   nvm.FileID
	}{
		{"object", FileUser(0)},
		{"descriptor table", FileUserDescriptors},
		{"area record", FileUserArea},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			faulty := nvm.NewFaultyStore(nvm.NewMemoryStore())
			db := openTestDB(t, faulty, 3, 3)

			faulty.FailWrites(func(id nvm.FileID) bool { return id == tc.id })
			if err := db.AddUser(testUser(1, "Ann")); !errors.Is(err, ErrIO) {
				t.Fatalf("expected ErrIO, got %v", err)
			}
			if db.UserCount() != 0 || db.HasUser(1) {
				t.Fatal("failed add must not be visible")
			}
			faulty.Reset()

			// The failed call leaves the allocator where it was.
			if err := db.AddUser(testUser(2, "Bob")); err != nil {
				t.Fatalf("AddUser after fault failed: %v", err)
			}
			if off := db.UserDescriptors()[0].Offset; off != 0 {
				t.Errorf("offset = %d, want 0", off)
			}

			faulty.FailWrites(func(id nvm.FileID) bool { return id == tc.id })
			if tc.id == FileUserDescriptors || tc.id == FileUserArea {
				if err := db.DeleteUser(2); !errors.Is(err, ErrIO) {
					t.Fatalf("DeleteUser: expected ErrIO, got %v", err)
				}
				if !db.HasUser(2) {
					t.Error("failed delete must keep the user")
				}
			}
		})
	}
}

func TestReopen(t *testing.T) {
	store := nvm.NewMemoryStore()
	db := openTestDB(t, store, 5, 5)

	_ = db.AddUser(testUser(3, "C"))
	_ = db.AddUser(testUser(1, "A"))
	_ = db.AddCredential(testPIN(1, 2, "1234"))
	_ = db.AddCredential(testPIN(3, 1, "5678"))
	_ = db.SetAdminCode(credential.AdminCode("9999"))

	re := openTestDB(t, store, 5, 5)
	if !reflect.DeepEqual(re.UserDescriptors(), db.UserDescriptors()) {
		t.Errorf("user descriptors differ after reopen")
	}
	if !reflect.DeepEqual(re.CredentialDescriptors(), db.CredentialDescriptors()) {
		t.Errorf("credential descriptors differ after reopen")
	}
	if re.userAlloc.head != db.userAlloc.head || re.credAlloc.head != db.credAlloc.head {
		t.Errorf("allocation heads differ after reopen")
	}
	if string(re.AdminCode()) != "9999" {
		t.Errorf("admin code = %q after reopen", re.AdminCode())
	}
	c, err := re.GetCredential(credential.CredentialKey{Type: credential.CredentialTypePINCode, Slot: 2})
	if err != nil || string(c.Data) != "1234" {
		t.Errorf("GetCredential after reopen = %v, %v", c, err)
	}
}

func TestReopen_RepairsCount(t *testing.T) {
	store := nvm.NewMemoryStore()
	db := openTestDB(t, store, 5, 5)
	_ = db.AddUser(testUser(1, "A"))
	_ = db.AddUser(testUser(2, "B"))

	// Simulate a crash between descriptor table and area record.
	_ = store.Write(FileUserArea, areaRecord{count: 1, head: 2}.encode())

	re := openTestDB(t, store, 5, 5)
	if re.UserCount() != 2 {
		t.Errorf("UserCount = %d, want 2", re.UserCount())
	}
	raw, _ := store.Read(FileUserArea)
	if rec, _ := decodeAreaRecord(raw); rec.count != 2 {
		t.Errorf("repaired count = %d, want 2", rec.count)
	}
}

func TestReopen_CorruptTable(t *testing.T) {
	store := nvm.NewMemoryStore()
	openTestDB(t, store, 5, 5)

	bad := encodeUserDescriptors([]UserDescriptor{{UUID: 5, Offset: 0}, {UUID: 2, Offset: 1}})
	_ = store.Write(FileUserDescriptors, bad)

	if _, err := Open(Config{Store: store}); !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO for unordered table, got %v", err)
	}
}

func TestReset(t *testing.T) {
	store := nvm.NewMemoryStore()
	db := openTestDB(t, store, 5, 5)
	_ = db.AddUser(testUser(1, "A"))
	_ = db.AddCredential(testPIN(1, 1, "1234"))
	_ = db.SetAdminCode(credential.AdminCode("4321"))

	if err := db.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if db.UserCount() != 0 || db.CredentialCount() != 0 || db.AdminCode().Active() {
		t.Errorf("database not empty after reset: %s", db)
	}
	if db.userAlloc.head != 0 || db.credAlloc.head != 0 {
		t.Error("cursors not reset")
	}

	re := openTestDB(t, store, 5, 5)
	if re.UserCount() != 0 || re.CredentialCount() != 0 {
		t.Error("reset not persisted")
	}
}

func TestAdminCode(t *testing.T) {
	db := openTestDB(t, nvm.NewMemoryStore(), 5, 5)

	if db.AdminCode().Active() {
		t.Fatal("fresh database should have no admin code")
	}
	if err := db.SetAdminCode(credential.AdminCode("1234")); err != nil {
		t.Fatalf("SetAdminCode failed: %v", err)
	}
	if err := db.SetAdminCode(credential.AdminCode("1234")); !errors.Is(err, ErrIdentical) {
		t.Errorf("expected ErrIdentical, got %v", err)
	}
	if !bytes.Equal(db.AdminCode(), []byte("1234")) {
		t.Errorf("AdminCode = %q", db.AdminCode())
	}
	if err := db.SetAdminCode(nil); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if db.AdminCode().Active() {
		t.Error("admin code should be deactivated")
	}
	if err := db.SetAdminCode(credential.AdminCode("12345678901")); !errors.Is(err, ErrTooLong) {
		t.Errorf("expected ErrTooLong, got %v", err)
	}
}
