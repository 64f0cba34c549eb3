package goCreds

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewStoreRejectsNilConfig(t *testing.T) {
	if _, err := NewStore(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadFallsBackToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		readErr error
	}{
		{name: "missing file"},
		{name: "blank file", content: strPtr("  \n")},
		{name: "malformed json", content: strPtr(`{"users": [`)},
		{name: "scalar document", content: strPtr(`42`)},
		{name: "object without users", content: strPtr(`{"other": true}`)},
		{name: "read error", readErr: errors.New("permission denied")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newMemFS()
			if tt.content != nil {
				fsys.put(testPath, *tt.content)
			}
			fsys.readErr = tt.readErr
			s := newTestStore(t, fsys)

			if got := s.List(context.Background()); len(got) != 0 {
				t.Fatalf("expected empty store, got %d users", len(got))
			}
		})
	}
}

func TestLoadAcceptsBareArrayAndLegacyFields(t *testing.T) {
	fsys := newMemFS()
	fsys.put(testPath, `[
		{"id":"u1","username":"legacy","handle":"h1","passwordHash":"hashed:10:pw","active":true},
		{"username":"no-id"},
		{"id":"u2","username":"modern","password":"hashed:10:new","passwordHash":"hashed:10:old","isActive":false,"active":true}
	]`)
	s := newTestStore(t, fsys)

	users := s.List(context.Background())
	if len(users) != 2 {
		t.Fatalf("expected records without id to be skipped, got %d", len(users))
	}

	legacy, _ := s.GetByID(context.Background(), "u1")
	if legacy.PasswordHash != "hashed:10:pw" || !legacy.IsActive {
		t.Fatalf("legacy fields not normalized: %+v", legacy)
	}
	modern, _ := s.GetByID(context.Background(), "u2")
	if modern.PasswordHash != "hashed:10:new" || modern.IsActive {
		t.Fatalf("canonical fields must win over legacy ones: %+v", modern)
	}
	if _, ok, _ := s.VerifyPassword(context.Background(), "h1", "pw"); !ok {
		t.Fatal("legacy passwordHash must verify")
	}
}

func TestLoadKeepsUsersWithMistypedFields(t *testing.T) {
	fsys := newMemFS()
	fsys.put(testPath, `{"users":[
		{"id":"u1","username":"alice","handle":"alice","password":"hashed:10:pw","isActive":true,"firstLogin":false},
		{"id":"u2","username":"bob","isActive":true,"firstLogin":"yes"}
	]}`)
	core, logs := observer.New(zap.WarnLevel)
	s := newTestStore(t, fsys, withLogger(zap.New(core)))
	ctx := context.Background()

	if got := len(s.List(ctx)); got != 2 {
		t.Fatalf("expected both users after load, got %d", got)
	}
	if _, err := s.Create(ctx, CreateUserInput{Username: "bob", Password: "pw"}); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected bob to still hold his username, got %v", err)
	}
	mustCreate(t, s, CreateUserInput{Username: "carol", Password: "pw"})

	var doc struct {
		Users []map[string]json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal([]byte(fsys.get(testPath)), &doc); err != nil {
		t.Fatalf("written document is not JSON: %v", err)
	}
	var names []string
	for _, u := range doc.Users {
		names = append(names, string(u[fieldUsername]))
		if string(u[fieldID]) == `"u2"` && string(u[fieldFirstLogin]) != `"yes"` {
			t.Fatalf("mistyped value must be written back unchanged, got %s", u[fieldFirstLogin])
		}
	}
	if !reflect.DeepEqual(names, []string{`"alice"`, `"bob"`, `"carol"`}) {
		t.Fatalf("expected every user in the written file, got %v", names)
	}

	if logs.FilterField(zap.String("id", "u2")).FilterField(zap.String("field", fieldFirstLogin)).Len() == 0 {
		t.Fatal("expected a warning naming the user and field")
	}
	if _, ok, _ := s.VerifyPassword(ctx, "alice", "pw"); !ok {
		t.Fatal("well-formed user must still verify")
	}
}

func TestUpdateSettlesMistypedField(t *testing.T) {
	fsys := newMemFS()
	fsys.put(testPath, `{"users":[{"id":"u2","username":"bob","isActive":true,"firstLogin":"yes"}]}`)
	s := newTestStore(t, fsys)

	if _, ok, err := s.Update(context.Background(), "u2", UserPatch{FirstLogin: boolPtr(true)}); err != nil || !ok {
		t.Fatalf("Update failed: ok=%v err=%v", ok, err)
	}
	stored, _ := s.GetByID(context.Background(), "u2")
	if !stored.FirstLogin || len(stored.malformedFields()) != 0 {
		t.Fatalf("expected typed firstLogin after update: %+v", stored)
	}
	if !strings.Contains(fsys.get(testPath), `"firstLogin": true`) {
		t.Fatalf("expected typed value written: %s", fsys.get(testPath))
	}
}

func TestReloadPicksUpExternalEdits(t *testing.T) {
	fsys := newMemFS()
	s := newTestStore(t, fsys)
	mustCreate(t, s, CreateUserInput{Username: "alice", Password: "pw"})

	fsys.put(testPath, `{"users":[{"id":"x","username":"hand-edited","isActive":true}]}`)

	users := s.List(context.Background())
	if len(users) != 1 || users[0].Username != "hand-edited" {
		t.Fatalf("expected the external edit to be visible, got %+v", users)
	}
}

func TestListOrderAndRedaction(t *testing.T) {
	s := newTestStore(t, newMemFS())
	for _, name := range []string{"carol", "alice", "bob"} {
		mustCreate(t, s, CreateUserInput{Username: name, Handle: strPtr(name + "-h"), Password: "pw"})
	}

	users := s.List(context.Background())
	var names []string
	for _, u := range users {
		if u.PasswordHash != "" {
			t.Fatalf("%s: list must not carry the password hash", u.Username)
		}
		names = append(names, u.Username)
	}
	if !reflect.DeepEqual(names, []string{"carol", "alice", "bob"}) {
		t.Fatalf("expected insertion order, got %v", names)
	}

	byHandle, ok := s.GetByHandle(context.Background(), "alice-h")
	if !ok || byHandle.Username != "alice" || byHandle.PasswordHash != "" {
		t.Fatalf("unexpected GetByHandle result: %+v ok=%v", byHandle, ok)
	}
	if _, ok := s.GetByHandle(context.Background(), "nobody"); ok {
		t.Fatal("unknown handle must not match")
	}

	byID, ok := s.GetByID(context.Background(), byHandle.ID)
	if !ok || byID.PasswordHash == "" {
		t.Fatal("GetByID must return the password hash")
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := newTestStore(t, newMemFS())
	u := mustCreate(t, s, CreateUserInput{
		Username: "alice",
		Handle:   strPtr("a"),
		Password: "pw",
		Extra:    map[string]json.RawMessage{"k": json.RawMessage(`1`)},
	}).User

	got, _ := s.GetByID(context.Background(), u.ID)
	*got.Handle = "mutated"
	got.Extra["k"] = json.RawMessage(`2`)

	again, _ := s.GetByID(context.Background(), u.ID)
	if *again.Handle != "a" || string(again.Extra["k"]) != "1" {
		t.Fatal("mutating a returned record must not affect the store")
	}
}

func TestRoundTripThroughFreshStore(t *testing.T) {
	fsys := newMemFS()
	first := newTestStore(t, fsys)
	ctx := context.Background()

	alice := mustCreate(t, first, CreateUserInput{
		Username: "alice",
		Handle:   strPtr("alice-h"),
		Password: "pw",
		Role:     "admin",
		Extra:    map[string]json.RawMessage{"department": json.RawMessage(`"ops"`)},
	}).User
	mustCreate(t, first, CreateUserInput{Username: "bob", GenerateCredentials: true})
	if _, _, err := first.VerifyPassword(ctx, "alice-h", "pw"); err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}

	var want []UserRecord
	for _, u := range first.List(ctx) {
		full, _ := first.GetByID(ctx, u.ID)
		want = append(want, full)
	}

	second := newTestStore(t, fsys)
	var got []UserRecord
	for _, u := range second.List(ctx) {
		full, _ := second.GetByID(ctx, u.ID)
		got = append(got, full)
	}

	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
	if got[0].ID != alice.ID || got[0].LastLogin == nil {
		t.Fatal("expected alice first with lastLogin preserved")
	}
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	fsys := newMemFS()
	s := newTestStore(t, fsys)
	u := mustCreate(t, s, CreateUserInput{Username: "alice", Password: "pw"}).User

	fsys.setFailWrite(true)
	_, ok, err := s.Update(context.Background(), u.ID, UserPatch{Role: strPtr("root")})
	if !ok || !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, ok=%v err=%v", ok, err)
	}

	// The next operation reloads the file, which never saw the change.
	got, _ := s.GetByID(context.Background(), u.ID)
	if got.Role == "root" {
		t.Fatal("an unpersisted change must not survive a reload")
	}
}

func TestBackup(t *testing.T) {
	fsys := newMemFS()
	s := newTestStore(t, fsys)
	mustCreate(t, s, CreateUserInput{Username: "alice", Password: "pw"})

	if err := s.Backup(context.Background(), "backup/users.json"); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if fsys.get("backup/users.json") != fsys.get(testPath) {
		t.Fatal("backup must match the live document")
	}

	if err := s.Backup(context.Background(), ""); !errors.Is(err, ErrInvalidUserInput) {
		t.Fatalf("expected ErrInvalidUserInput, got %v", err)
	}

	fsys.setFailWrite(true)
	if err := s.Backup(context.Background(), "backup/other.json"); !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
}

func TestConcurrentCreatesAreSerialized(t *testing.T) {
	fsys := newMemFS()
	s := newTestStore(t, fsys)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(context.Background(), CreateUserInput{Username: "same", Password: "pw"})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, ErrDuplicateUsername) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one create to win, got %d", success)
	}
	if got := len(s.List(context.Background())); got != 1 {
		t.Fatalf("expected 1 user, got %d", got)
	}
}
