package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndCompare(t *testing.T) {
	hash, err := BcryptHash("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("BcryptHash error: %v", err)
	}
	if hash == "s3cret" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("unexpected hash: %s", hash)
	}

	cost, err := BcryptCost(hash)
	if err != nil {
		t.Fatalf("BcryptCost error: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Fatalf("expected cost %d, got %d", bcrypt.MinCost, cost)
	}

	ok, err := BcryptCompare("s3cret", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = BcryptCompare("wrong", hash)
	if err != nil {
		t.Fatalf("BcryptCompare mismatch error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestBcryptHashIsSalted(t *testing.T) {
	a, err := BcryptHash("same", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("BcryptHash error: %v", err)
	}
	b, err := BcryptHash("same", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("BcryptHash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for the same plaintext")
	}
}

func TestBcryptHashRejects(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		cost      int
		want      error
	}{
		{name: "empty", plaintext: "", cost: bcrypt.MinCost, want: ErrEmptyPassword},
		{name: "too long", plaintext: strings.Repeat("x", 73), cost: bcrypt.MinCost, want: ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BcryptHash(tt.plaintext, tt.cost); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := BcryptHash("fine", bcrypt.MaxCost+1); err == nil {
		t.Fatal("expected invalid cost to fail")
	}
}

func TestBcryptCompareMalformedHash(t *testing.T) {
	ok, err := BcryptCompare("anything", "not-a-bcrypt-hash")
	if err == nil {
		t.Fatal("expected malformed hash to fail")
	}
	if ok {
		t.Fatal("malformed hash must never match")
	}
}
