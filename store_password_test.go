package goCreds

import (
	"context"
	"errors"
	"testing"
)

func TestVerifyPasswordScenario(t *testing.T) {
	fsys := newMemFS()
	s := newTestStore(t, fsys)
	alice := mustCreate(t, s, CreateUserInput{
		Username: "alice",
		Handle:   strPtr("alice-handle"),
		Password: "secret123",
	}).User

	got, ok, err := s.VerifyPassword(context.Background(), "alice-handle", "secret123")
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed, ok=%v err=%v", ok, err)
	}
	if got.ID != alice.ID || got.LastLogin == nil {
		t.Fatalf("expected alice with lastLogin set, got %+v", got)
	}
	if got.PasswordHash != "" {
		t.Fatal("verify result must not carry the password hash")
	}
	if !got.UpdatedAt.Equal(alice.UpdatedAt) {
		t.Fatal("a successful login must not advance updatedAt")
	}

	stored, _ := s.GetByID(context.Background(), alice.ID)
	if stored.LastLogin == nil || !stored.LastLogin.Equal(*got.LastLogin) {
		t.Fatal("lastLogin must be persisted")
	}

	if _, ok, err := s.VerifyPassword(context.Background(), "alice-handle", "wrong"); ok || err != nil {
		t.Fatalf("expected invalid, ok=%v err=%v", ok, err)
	}
}

func TestVerifyPasswordFailsClosed(t *testing.T) {
	fsys := newMemFS()
	fsys.put(testPath, `{"users":[
		{"id":"u1","username":"inactive","handle":"h-inactive","password":"hashed:10:pw","isActive":false},
		{"id":"u2","username":"nopass","handle":"h-nopass","isActive":true},
		{"id":"u3","username":"ok","handle":"h-ok","password":"hashed:10:pw","isActive":true},
		{"id":"u4","username":"garbled","handle":"h-garbled","password":"$unknown$","isActive":true}
	]}`)
	s := newTestStore(t, fsys)
	before := fsys.get(testPath)

	tests := []struct {
		name     string
		handle   string
		password string
	}{
		{name: "inactive", handle: "h-inactive", password: "pw"},
		{name: "no password", handle: "h-nopass", password: ""},
		{name: "wrong password", handle: "h-ok", password: "nope"},
		{name: "unknown handle", handle: "h-missing", password: "pw"},
		{name: "compare error", handle: "h-garbled", password: "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := s.VerifyPassword(context.Background(), tt.handle, tt.password)
			if ok || err != nil {
				t.Fatalf("expected indistinguishable invalid, ok=%v err=%v", ok, err)
			}
			if got.ID != "" {
				t.Fatalf("expected empty record, got %+v", got)
			}
		})
	}

	if fsys.writeCount() != 0 || fsys.get(testPath) != before {
		t.Fatal("failed verification must not write")
	}
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		rec, _ := s.GetByID(context.Background(), id)
		if rec.LastLogin != nil {
			t.Fatalf("%s: lastLogin must not be set", id)
		}
	}
}

func TestVerifyPasswordFirstHandleMatchWins(t *testing.T) {
	fsys := newMemFS()
	fsys.put(testPath, `[
		{"id":"u1","username":"first","handle":"shared","password":"hashed:10:one","isActive":true},
		{"id":"u2","username":"second","handle":"shared","password":"hashed:10:two","isActive":true}
	]`)
	s := newTestStore(t, fsys)

	if _, ok, _ := s.VerifyPassword(context.Background(), "shared", "two"); ok {
		t.Fatal("only the first record with a handle is considered")
	}
	got, ok, err := s.VerifyPassword(context.Background(), "shared", "one")
	if err != nil || !ok || got.ID != "u1" {
		t.Fatalf("expected u1, got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestVerifyPasswordPersistenceFailure(t *testing.T) {
	fsys := newMemFS()
	s := newTestStore(t, fsys)
	mustCreate(t, s, CreateUserInput{Username: "alice", Handle: strPtr("a"), Password: "pw"})
	fsys.setFailWrite(true)

	_, ok, err := s.VerifyPassword(context.Background(), "a", "pw")
	if ok || !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, ok=%v err=%v", ok, err)
	}
}

func TestUpdatePassword(t *testing.T) {
	fsys := newMemFS()
	s := newTestStore(t, fsys)
	u := mustCreate(t, s, CreateUserInput{Username: "alice", Handle: strPtr("a"), Password: "old"}).User

	ok, err := s.UpdatePassword(context.Background(), u.ID, "new")
	if err != nil || !ok {
		t.Fatalf("UpdatePassword failed: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.VerifyPassword(context.Background(), "a", "old"); ok {
		t.Fatal("old password must stop working")
	}
	if _, ok, _ := s.VerifyPassword(context.Background(), "a", "new"); !ok {
		t.Fatal("new password must work")
	}
	stored, _ := s.GetByID(context.Background(), u.ID)
	if !stored.UpdatedAt.After(u.UpdatedAt) {
		t.Fatal("UpdatePassword must advance updatedAt")
	}

	writes := fsys.writeCount()
	if ok, err := s.UpdatePassword(context.Background(), "missing", "x"); ok || err != nil {
		t.Fatalf("expected not-found, ok=%v err=%v", ok, err)
	}
	if fsys.writeCount() != writes {
		t.Fatal("missing record must not write")
	}

	if _, err := s.UpdatePassword(context.Background(), u.ID, ""); !errors.Is(err, ErrInvalidUserInput) {
		t.Fatalf("expected ErrInvalidUserInput, got %v", err)
	}
}
