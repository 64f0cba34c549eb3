package goCreds

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrEthical07/goCreds/internal"
	"github.com/MrEthical07/goCreds/password"
	"github.com/MrEthical07/goCreds/storage"
	"github.com/MrEthical07/goCreds/totp"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	// DefaultHashCost is the cost factor handed to the hash function when none is configured.
	DefaultHashCost = 10
	// DefaultIssuer labels enrollment URIs when no issuer is configured.
	DefaultIssuer = "goCreds"
	// TempPasswordLength is the length requested from the temporary-password generator.
	TempPasswordLength = 12
)

// DefaultFilePath is the user file location used when none is configured.
var DefaultFilePath = filepath.Join("content", "users.json")

// ReadFunc returns the full contents of the file at path.
type ReadFunc func(ctx context.Context, path string) ([]byte, error)

// WriteFunc durably replaces the contents of the file at path.
type WriteFunc func(ctx context.Context, path string, data []byte) error

// HashFunc returns a one-way hash of plaintext using the given cost factor.
type HashFunc func(plaintext string, cost int) (string, error)

// CompareFunc reports whether plaintext matches hash.
type CompareFunc func(plaintext, hash string) (bool, error)

// SecretFunc returns a fresh TOTP secret.
type SecretFunc func() (string, error)

// URIFunc derives an enrollment URI from a secret, issuer and account name.
type URIFunc func(secret, issuer, account string) (string, error)

// ArtifactFunc renders a scannable representation of an enrollment URI.
type ArtifactFunc func(uri string) (string, error)

// TempPasswordFunc returns a random printable password of the given length.
type TempPasswordFunc func(length int) (string, error)

// IDFunc returns a fresh globally unique identifier.
type IDFunc func() string

// CodeVerifyFunc checks a one-time code against a TOTP secret at the given time.
type CodeVerifyFunc func(secret, code string, now time.Time) (bool, error)

// MetricsConfig controls in-process metric collection for a Store.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Options carries every configurable value and injected collaborator.
//
// Zero values mean "unset": accessors on [Config] substitute defaults where a
// safe default exists and fail with [ErrConfigurationMissing] where it does not.
type Options struct {
	FilePath string
	HashCost int
	Issuer   string

	ReadFile  ReadFunc
	WriteFile WriteFunc

	Hash    HashFunc
	Compare CompareFunc

	GenerateSecret       SecretFunc
	GenerateURI          URIFunc
	GenerateArtifact     ArtifactFunc
	GenerateTempPassword TempPasswordFunc
	GenerateID           IDFunc
	VerifyCode           CodeVerifyFunc

	Logger    *zap.Logger
	AuditSink AuditSink
	Metrics   *MetricsConfig
}

// Config is a concurrency-safe holder for [Options]. A single Config is
// constructed by the embedding application and passed into [NewStore].
type Config struct {
	mu   sync.RWMutex
	opts Options
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type configRules struct {
	FilePath string `validate:"required"`
	HashCost int    `validate:"min=4,max=31"`
	Issuer   string `validate:"required,excludes=:"`
}

// NewConfig returns a Config seeded with opts.
func NewConfig(opts Options) (*Config, error) {
	c := &Config{}
	if err := c.Configure(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure merges opts into the current configuration field by field.
// Non-zero fields overwrite; zero fields leave the previous value untouched.
// The merged result is validated before it is applied.
func (c *Config) Configure(opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := mergeOptions(c.opts, opts)
	if err := validateOptions(merged); err != nil {
		return err
	}
	c.opts = merged
	return nil
}

// Options returns a copy of the configured values. Defaults are not filled in.
func (c *Config) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := c.opts
	if c.opts.Metrics != nil {
		m := *c.opts.Metrics
		out.Metrics = &m
	}
	return out
}

// Reset clears every configured value.
func (c *Config) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = Options{}
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return validateOptions(c.opts)
}

func mergeOptions(base, next Options) Options {
	if next.FilePath != "" {
		base.FilePath = next.FilePath
	}
	if next.HashCost != 0 {
		base.HashCost = next.HashCost
	}
	if next.Issuer != "" {
		base.Issuer = next.Issuer
	}
	if next.ReadFile != nil {
		base.ReadFile = next.ReadFile
	}
	if next.WriteFile != nil {
		base.WriteFile = next.WriteFile
	}
	if next.Hash != nil {
		base.Hash = next.Hash
	}
	if next.Compare != nil {
		base.Compare = next.Compare
	}
	if next.GenerateSecret != nil {
		base.GenerateSecret = next.GenerateSecret
	}
	if next.GenerateURI != nil {
		base.GenerateURI = next.GenerateURI
	}
	if next.GenerateArtifact != nil {
		base.GenerateArtifact = next.GenerateArtifact
	}
	if next.GenerateTempPassword != nil {
		base.GenerateTempPassword = next.GenerateTempPassword
	}
	if next.GenerateID != nil {
		base.GenerateID = next.GenerateID
	}
	if next.VerifyCode != nil {
		base.VerifyCode = next.VerifyCode
	}
	if next.Logger != nil {
		base.Logger = next.Logger
	}
	if next.AuditSink != nil {
		base.AuditSink = next.AuditSink
	}
	if next.Metrics != nil {
		m := *next.Metrics
		base.Metrics = &m
	}
	return base
}

func validateOptions(opts Options) error {
	rules := configRules{
		FilePath: opts.FilePath,
		HashCost: opts.HashCost,
		Issuer:   opts.Issuer,
	}
	if rules.FilePath == "" {
		rules.FilePath = DefaultFilePath
	}
	if rules.HashCost == 0 {
		rules.HashCost = DefaultHashCost
	}
	if rules.Issuer == "" {
		rules.Issuer = DefaultIssuer
	}
	if err := validate.Struct(rules); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// FilePath returns the backing file path.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.FilePath == "" {
		return DefaultFilePath
	}
	return c.opts.FilePath
}

// HashCost returns the cost factor passed to the hash function.
func (c *Config) HashCost() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.HashCost == 0 {
		return DefaultHashCost
	}
	return c.opts.HashCost
}

// Issuer returns the issuer label used for enrollment URIs.
func (c *Config) Issuer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.Issuer == "" {
		return DefaultIssuer
	}
	return c.opts.Issuer
}

// ReadFile returns the configured reader or the local-filesystem default.
func (c *Config) ReadFile() ReadFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.ReadFile == nil {
		return storage.ReadFile
	}
	return c.opts.ReadFile
}

// WriteFile returns the configured writer or the local-filesystem default.
func (c *Config) WriteFile() WriteFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.WriteFile == nil {
		return storage.WriteFile
	}
	return c.opts.WriteFile
}

// Hash returns the configured hash function or bcrypt.
func (c *Config) Hash() HashFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.Hash == nil {
		return password.BcryptHash
	}
	return c.opts.Hash
}

// Compare returns the configured comparison function or bcrypt.
func (c *Config) Compare() CompareFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.Compare == nil {
		return password.BcryptCompare
	}
	return c.opts.Compare
}

// GenerateID returns the configured identifier generator or random UUIDs.
func (c *Config) GenerateID() IDFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.GenerateID == nil {
		return uuid.NewString
	}
	return c.opts.GenerateID
}

// SecretGenerator returns the TOTP secret generator.
// It fails with ErrConfigurationMissing when none is configured.
func (c *Config) SecretGenerator() (SecretFunc, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.GenerateSecret == nil {
		return nil, missing("GenerateSecret")
	}
	return c.opts.GenerateSecret, nil
}

// URIGenerator returns the enrollment URI generator.
// It fails with ErrConfigurationMissing when none is configured.
func (c *Config) URIGenerator() (URIFunc, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.GenerateURI == nil {
		return nil, missing("GenerateURI")
	}
	return c.opts.GenerateURI, nil
}

// ArtifactGenerator returns the enrollment artifact generator.
// It fails with ErrConfigurationMissing when none is configured.
func (c *Config) ArtifactGenerator() (ArtifactFunc, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.GenerateArtifact == nil {
		return nil, missing("GenerateArtifact")
	}
	return c.opts.GenerateArtifact, nil
}

// TempPasswordGenerator returns the temporary-password generator.
// It fails with ErrConfigurationMissing when none is configured.
func (c *Config) TempPasswordGenerator() (TempPasswordFunc, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.GenerateTempPassword == nil {
		return nil, missing("GenerateTempPassword")
	}
	return c.opts.GenerateTempPassword, nil
}

// CodeVerifier returns the TOTP code verifier.
// It fails with ErrConfigurationMissing when none is configured.
func (c *Config) CodeVerifier() (CodeVerifyFunc, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.VerifyCode == nil {
		return nil, missing("VerifyCode")
	}
	return c.opts.VerifyCode, nil
}

// Logger returns the configured logger or a no-op logger.
func (c *Config) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.Logger == nil {
		return zap.NewNop()
	}
	return c.opts.Logger
}

// AuditSink returns the configured sink or [NoOpSink].
func (c *Config) AuditSink() AuditSink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.AuditSink == nil {
		return NoOpSink{}
	}
	return c.opts.AuditSink
}

func (c *Config) metricsConfig() MetricsConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.opts.Metrics == nil {
		return MetricsConfig{}
	}
	return *c.opts.Metrics
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrConfigurationMissing, name)
}

// RecommendedGenerators returns Options wiring the bundled TOTP and
// temporary-password implementations. Applications opt in explicitly:
//
//	cfg, err := goCreds.NewConfig(goCreds.RecommendedGenerators())
func RecommendedGenerators() Options {
	gen := totp.New(totp.DefaultConfig())
	return Options{
		GenerateSecret:       gen.GenerateSecret,
		GenerateURI:          gen.ProvisionURI,
		GenerateArtifact:     totp.QRCodeDataURI,
		GenerateTempPassword: internal.NewTempPassword,
		VerifyCode:           gen.VerifyCode,
	}
}

type envOptions struct {
	FilePath string `envconfig:"FILE_PATH"`
	HashCost int    `envconfig:"HASH_COST"`
	Issuer   string `envconfig:"TOTP_ISSUER"`
}

// LoadEnvOptions reads <prefix>_FILE_PATH, <prefix>_HASH_COST and
// <prefix>_TOTP_ISSUER from the environment. Unset variables stay zero so the
// result can be merged with [Config.Configure].
func LoadEnvOptions(prefix string) (Options, error) {
	var env envOptions
	if err := envconfig.Process(prefix, &env); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return Options{
		FilePath: env.FilePath,
		HashCost: env.HashCost,
		Issuer:   env.Issuer,
	}, nil
}
