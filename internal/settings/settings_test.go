package settings_test

import (
	"context"
	"path/filepath"
	"testing"

	"snapseal/internal/kvstore"
	"snapseal/internal/settings"
)

func openStore(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadMissingRecordReturnsDefaults(t *testing.T) {
	store := openStore(t)
	got := settings.Load(context.Background(), store)
	if got != settings.Default() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestPartialRecordMergesOverDefaults(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, kvstore.KeySettings, `{"autoUpload":false}`); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	got := settings.Load(ctx, store)
	if got.AutoUpload {
		t.Fatal("expected stored autoUpload=false to win")
	}
	defaults := settings.Default()
	if got.TimestampStamp != defaults.TimestampStamp || got.AttachSource != defaults.AttachSource {
		t.Fatalf("expected unset fields to keep defaults, got %+v", got)
	}
}

func TestCorruptRecordFallsBackToDefaults(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, kvstore.KeySettings, `{not json`); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	got := settings.Load(ctx, store)
	if got != settings.Default() {
		t.Fatalf("expected defaults for corrupt record, got %+v", got)
	}
}

func TestSaveRoundTripStampsVersion(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	s := settings.Default()
	s.LocationEnabled = true
	s.DefaultCaption = "evidence"
	s.Version = 0
	if err := settings.Save(ctx, store, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got := settings.Load(ctx, store)
	if !got.LocationEnabled || got.DefaultCaption != "evidence" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if got.Version != settings.CurrentVersion {
		t.Fatalf("expected version %d, got %d", settings.CurrentVersion, got.Version)
	}
}
