package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty plaintext.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong is returned when plaintext exceeds the hasher's input limit.
	ErrPasswordTooLong = errors.New("password is too long")
)

// BcryptHash hashes plaintext with bcrypt at the given cost. A zero cost
// selects bcrypt.DefaultCost. Plaintext longer than 72 bytes is rejected
// instead of being silently truncated.
func BcryptHash(plaintext string, cost int) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(hash), nil
}

// BcryptCompare reports whether plaintext matches a bcrypt hash.
// A mismatch is (false, nil); a malformed hash is an error.
func BcryptCompare(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// BcryptCost returns the cost factor embedded in a bcrypt hash.
func BcryptCost(hash string) (int, error) {
	return bcrypt.Cost([]byte(hash))
}
