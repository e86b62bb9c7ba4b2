package main

import (
	"testing"

	"snapseal/internal/ipc"
)

func TestApplySettingBooleans(t *testing.T) {
	base := ipc.SettingsPayload{AutoUpload: true, TimestampStamp: true}

	updated, err := applySetting(base, "auto-upload", "false")
	if err != nil {
		t.Fatalf("applySetting: %v", err)
	}
	if updated.AutoUpload {
		t.Fatal("auto-upload should be disabled")
	}
	if !updated.TimestampStamp {
		t.Fatal("other settings must be untouched")
	}

	if _, err := applySetting(base, "location", "maybe"); err == nil {
		t.Fatal("expected error for non-boolean value")
	}
}

func TestApplySettingCaptionAndUnknownKey(t *testing.T) {
	updated, err := applySetting(ipc.SettingsPayload{}, "default-caption", "field notes")
	if err != nil {
		t.Fatalf("applySetting: %v", err)
	}
	if updated.DefaultCaption != "field notes" {
		t.Fatalf("caption = %q", updated.DefaultCaption)
	}

	if _, err := applySetting(ipc.SettingsPayload{}, "shutter-speed", "fast"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}
