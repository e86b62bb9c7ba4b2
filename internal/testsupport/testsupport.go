// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"snapseal/internal/blobstore"
	"snapseal/internal/config"
	"snapseal/internal/kvstore"
)

// NewConfig returns a validated configuration rooted in a temp directory.
// The API server binds an ephemeral loopback port and the watcher is off.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Watcher.Enabled = false

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return &cfg
}

// MustOpenKV opens the record store for cfg and closes it on cleanup.
func MustOpenKV(t *testing.T, cfg *config.Config) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(cfg.RecordsDBPath())
	if err != nil {
		t.Fatalf("open record store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// MustOpenBlobs opens the asset store for cfg and closes it on cleanup.
func MustOpenBlobs(t *testing.T, cfg *config.Config) *blobstore.Store {
	t.Helper()
	store, err := blobstore.Open(cfg.AssetsDBPath())
	if err != nil {
		t.Fatalf("open asset store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
