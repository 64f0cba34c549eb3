package goCreds

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errDiskFull = errors.New("disk full")

// memFS is an in-memory stand-in for the user file.
type memFS struct {
	mu        sync.Mutex
	files     map[string][]byte
	writes    int
	failWrite bool
	readErr   error
}

func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte)}
}

func (m *memFS) read(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	data, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *memFS) write(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errDiskFull
	}
	m.writes++
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memFS) put(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
}

func (m *memFS) get(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.files[path])
}

func (m *memFS) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memFS) setFailWrite(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = v
}

const testCode = "123456"

func fakeHash(plaintext string, cost int) (string, error) {
	return fmt.Sprintf("hashed:%d:%s", cost, plaintext), nil
}

func fakeCompare(plaintext, hash string) (bool, error) {
	parts := strings.SplitN(hash, ":", 3)
	if len(parts) != 3 || parts[0] != "hashed" {
		return false, errors.New("unknown hash format")
	}
	return parts[2] == plaintext, nil
}

// testGenerators returns deterministic collaborators; ids and temp
// passwords count up from 1.
func testGenerators() Options {
	var (
		mu      sync.Mutex
		ids     int
		temps   int
		secrets int
	)
	return Options{
		Hash:    fakeHash,
		Compare: fakeCompare,
		GenerateID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
		GenerateTempPassword: func(length int) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			temps++
			return fmt.Sprintf("tmp%0*d", length-3, temps), nil
		},
		GenerateSecret: func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			secrets++
			return fmt.Sprintf("SECRET%d", secrets), nil
		},
		GenerateURI: func(secret, issuer, account string) (string, error) {
			return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s", issuer, account, secret), nil
		},
		GenerateArtifact: func(uri string) (string, error) {
			return "qr:" + uri, nil
		},
		VerifyCode: func(secret, code string, _ time.Time) (bool, error) {
			return secret != "" && code == testCode, nil
		},
	}
}

const testPath = "content/users.json"

type testStoreOption func(*Options)

func withSink(sink AuditSink) testStoreOption {
	return func(o *Options) { o.AuditSink = sink }
}

func withLogger(logger *zap.Logger) testStoreOption {
	return func(o *Options) { o.Logger = logger }
}

func withMetrics() testStoreOption {
	return func(o *Options) {
		o.Metrics = &MetricsConfig{Enabled: true, EnableLatencyHistograms: true}
	}
}

func withoutGenerators() testStoreOption {
	return func(o *Options) {
		o.GenerateTempPassword = nil
		o.GenerateSecret = nil
		o.GenerateURI = nil
		o.GenerateArtifact = nil
		o.VerifyCode = nil
	}
}

func newTestStore(t testing.TB, fsys *memFS, opts ...testStoreOption) *Store {
	t.Helper()

	o := testGenerators()
	o.FilePath = testPath
	o.ReadFile = fsys.read
	o.WriteFile = fsys.write
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := NewConfig(o)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	var (
		mu    sync.Mutex
		clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	)
	store.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func mustCreate(t testing.TB, s *Store, in CreateUserInput) *CreateUserResult {
	t.Helper()
	res, err := s.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", in.Username, err)
	}
	return res
}
