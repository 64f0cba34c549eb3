//go:build integration
// +build integration

package test

import (
	"path/filepath"
	"testing"

	goCreds "github.com/MrEthical07/goCreds"
	"github.com/MrEthical07/goCreds/storage"
	"github.com/redis/go-redis/v9"
)

const integrationDocPath = "users.json"

func newRedisStore(t *testing.T, rdb redis.UniversalClient, prefix string) *goCreds.Store {
	t.Helper()

	backend := storage.NewRedisBackend(rdb, prefix)
	opts := goCreds.RecommendedGenerators()
	opts.FilePath = integrationDocPath
	opts.HashCost = 4
	opts.ReadFile = backend.Read
	opts.WriteFile = backend.Write
	return newStore(t, opts)
}

func newFileStore(t *testing.T, path string) *goCreds.Store {
	t.Helper()

	opts := goCreds.RecommendedGenerators()
	opts.FilePath = path
	opts.HashCost = 4
	return newStore(t, opts)
}

func newStore(t *testing.T, opts goCreds.Options) *goCreds.Store {
	t.Helper()

	cfg, err := goCreds.NewConfig(opts)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	store, err := goCreds.NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func tempDocPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "content", "users.json")
}

func mustCreate(t *testing.T, store *goCreds.Store, in goCreds.CreateUserInput) *goCreds.CreateUserResult {
	t.Helper()
	res, err := store.Create(t.Context(), in)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", in.Username, err)
	}
	return res
}

func strPtr(s string) *string { return &s }
