package asset_test

import (
	"testing"

	"snapseal/internal/asset"
)

func TestNewAssignsIDAndDraftStatus(t *testing.T) {
	a := asset.New([]byte{0x89, 0x50}, "image/png", 800, 600, asset.ModeVisible)
	if a.ID == "" {
		t.Fatal("expected generated ID")
	}
	if a.Status != asset.StatusDraft {
		t.Fatalf("expected draft status, got %s", a.Status)
	}
	if a.CreatedAt.IsZero() {
		t.Fatal("expected capture timestamp")
	}

	b := asset.New(nil, "image/png", 1, 1, asset.ModeRegion)
	if a.ID == b.ID {
		t.Fatal("expected unique IDs per asset")
	}
}

func TestSetUploadingClearsPriorError(t *testing.T) {
	a := asset.New(nil, "image/png", 1, 1, asset.ModeVisible)
	a.SetFailed("boom", asset.ErrorTypeUploadFailed)

	a.SetUploading()
	if a.Status != asset.StatusUploading {
		t.Fatalf("expected uploading, got %s", a.Status)
	}
	if a.ErrorMessage != "" || a.ErrorType != "" {
		t.Fatalf("expected error metadata cleared, got %q/%q", a.ErrorMessage, a.ErrorType)
	}
	if a.Progress != 0 {
		t.Fatalf("expected progress reset to 0, got %v", a.Progress)
	}
}

func TestSetUploadedRecordsRemoteIdentifiers(t *testing.T) {
	a := asset.New(nil, "image/png", 1, 1, asset.ModeVisible)
	a.SetUploaded("cid-1", "nid-1")
	if a.Status != asset.StatusUploaded {
		t.Fatalf("expected uploaded, got %s", a.Status)
	}
	if a.Progress != 1 {
		t.Fatalf("expected terminal progress 1, got %v", a.Progress)
	}
	if a.RemoteContentID != "cid-1" || a.RemoteNetworkID != "nid-1" {
		t.Fatalf("remote identifiers not recorded: %q/%q", a.RemoteContentID, a.RemoteNetworkID)
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  asset.Status
		ok    bool
	}{
		{"draft", asset.StatusDraft, true},
		{" Uploading ", asset.StatusUploading, true},
		{"uploaded", asset.StatusUploaded, true},
		{"failed", asset.StatusFailed, true},
		{"pending", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := asset.ParseStatus(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseStatus(%q) = %q,%v; want %q,%v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}
