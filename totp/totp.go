// Package totp implements RFC 6238 time-based one-time passwords: secret
// generation, otpauth:// provisioning URIs, code verification and a QR-code
// enrollment artifact.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const secretBytes = 20

var (
	// ErrEmptySecret is returned when a secret is empty or decodes to nothing.
	ErrEmptySecret = errors.New("empty totp secret")
	// ErrInvalidSecret is returned when a secret is not valid base32.
	ErrInvalidSecret = errors.New("invalid totp secret encoding")
	// ErrUnsupportedAlgorithm is returned for algorithms other than SHA1, SHA256 and SHA512.
	ErrUnsupportedAlgorithm = errors.New("unsupported totp algorithm")
	// ErrInvalidLabel is returned when issuer or account contains ':' or account is empty.
	ErrInvalidLabel = errors.New("invalid totp issuer or account")
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config holds TOTP parameters.
type Config struct {
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

// DefaultConfig returns the parameters authenticator apps assume: six
// digits, thirty-second steps, SHA1 and one step of clock drift.
func DefaultConfig() Config {
	return Config{
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	}
}

// Generator produces secrets, provisioning URIs and codes for one Config.
// It holds no mutable state and is safe for concurrent use.
type Generator struct {
	config Config
}

// New returns a Generator for cfg. Zero fields take their DefaultConfig value.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Digits == 0 {
		cfg.Digits = def.Digits
	}
	if cfg.Period == 0 {
		cfg.Period = def.Period
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	if cfg.Skew < 0 {
		cfg.Skew = 0
	}
	return &Generator{config: cfg}
}

// GenerateSecret returns a fresh 160-bit secret, base32 encoded without padding.
func (g *Generator) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// ProvisionURI returns the otpauth:// URI an authenticator app imports.
func (g *Generator) ProvisionURI(secret, issuer, account string) (string, error) {
	if _, err := decodeSecret(secret); err != nil {
		return "", err
	}
	if account == "" || strings.Contains(issuer, ":") {
		return "", ErrInvalidLabel
	}

	// A colon inside the account would read as the issuer separator.
	label := strings.ReplaceAll(url.PathEscape(account), ":", "%3A")
	if issuer != "" {
		label = url.PathEscape(issuer) + ":" + label
	}

	v := url.Values{}
	v.Set("secret", strings.ToUpper(secret))
	if issuer != "" {
		v.Set("issuer", issuer)
	}
	v.Set("period", strconv.Itoa(g.config.Period))
	v.Set("digits", strconv.Itoa(g.config.Digits))
	v.Set("algorithm", strings.ToUpper(g.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode(), nil
}

// Code returns the code for secret at now.
func (g *Generator) Code(secret string, now time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotpCode(key, now.Unix()/int64(g.config.Period), g.config.Digits, g.config.Algorithm)
}

// VerifyCode reports whether code is valid for secret at now, allowing the
// configured number of steps of drift either side. Codes of the wrong length
// or containing non-digits are rejected without error.
func (g *Generator) VerifyCode(secret, code string, now time.Time) (bool, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}
	return g.verify(key, code, now)
}

func (g *Generator) verify(key []byte, code string, now time.Time) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != g.config.Digits || !isNumeric(trimmed) {
		return false, nil
	}
	if len(key) == 0 {
		return false, ErrEmptySecret
	}

	base := now.Unix() / int64(g.config.Period)
	matched := 0
	for step := -g.config.Skew; step <= g.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(key, counter, g.config.Digits, g.config.Algorithm)
		if err != nil {
			return false, err
		}
		// Keep scanning so timing does not reveal which step matched.
		matched |= subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed))
	}
	return matched == 1, nil
}

func decodeSecret(secret string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	cleaned = strings.TrimRight(cleaned, "=")
	if cleaned == "" {
		return nil, ErrEmptySecret
	}
	key, err := secretEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(key) == 0 {
		return nil, ErrEmptySecret
	}
	return key, nil
}

func hotpCode(key []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
