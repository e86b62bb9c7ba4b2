package settings

import (
	"context"
	"errors"
	"fmt"

	"snapseal/internal/kvstore"
)

// CurrentVersion identifies the settings record layout.
const CurrentVersion = 1

// Settings holds user preferences applied at capture and upload time.
type Settings struct {
	Version         int    `json:"version"`
	AutoUpload      bool   `json:"autoUpload"`
	TimestampStamp  bool   `json:"timestampStamp"`
	LocationEnabled bool   `json:"locationEnabled"`
	AttachSource    bool   `json:"attachSource"`
	DefaultCaption  string `json:"defaultCaption"`
}

// Default returns the settings applied before the user has saved anything.
func Default() Settings {
	return Settings{
		Version:         CurrentVersion,
		AutoUpload:      true,
		TimestampStamp:  true,
		LocationEnabled: false,
		AttachSource:    true,
		DefaultCaption:  "",
	}
}

// Load reads settings from the store, merging the stored record over
// defaults. A missing or unreadable record yields defaults so a corrupt
// write can never lock the user out of their preferences.
func Load(ctx context.Context, store *kvstore.Store) Settings {
	merged := Default()
	if store == nil {
		return merged
	}
	if err := store.GetJSON(ctx, kvstore.KeySettings, &merged); err != nil {
		return Default()
	}
	merged.Version = CurrentVersion
	return merged
}

// Save persists the settings record.
func Save(ctx context.Context, store *kvstore.Store, s Settings) error {
	if store == nil {
		return errors.New("settings store is nil")
	}
	s.Version = CurrentVersion
	if err := store.SetJSON(ctx, kvstore.KeySettings, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
