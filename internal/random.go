package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// tempPasswordAlphabet omits characters that are easy to misread
// (0/O, 1/l/I) and quoting characters that break shells.
const tempPasswordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!#%+-=?@^_"

const minTempPasswordLength = 8

// NewTempPassword returns a random printable password of the given length
// drawn uniformly from tempPasswordAlphabet with crypto/rand.
func NewTempPassword(length int) (string, error) {
	if length < minTempPasswordLength {
		return "", errors.New("temporary password too short")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(tempPasswordAlphabet[n.Int64()])
	}
	return b.String(), nil
}
