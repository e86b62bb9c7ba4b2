package registrar_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"snapseal/internal/asset"
	"snapseal/internal/registrar"
)

func newClient(t *testing.T, handler http.HandlerFunc) *registrar.HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	token := func(ctx context.Context) (string, error) { return "tok-1", nil }
	return registrar.NewHTTPClient(server.URL, 0, server.Client(), token)
}

func testAsset() *asset.Asset {
	a := asset.New([]byte("png-bytes"), "image/png", 800, 600, asset.ModeVisible)
	a.Caption = "invoice"
	return a
}

func TestRegisterSendsMultipartForm(t *testing.T) {
	var (
		gotAuth     string
		gotManifest string
		gotCaption  string
		gotFile     []byte
	)
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
		}
		gotManifest = r.FormValue("manifest")
		gotCaption = r.FormValue("caption")
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFile, _ = io.ReadAll(file)
			file.Close()
		}
		json.NewEncoder(w).Encode(map[string]string{
			"content_id": "content-9",
			"network_id": "network-9",
		})
	})

	receipt, err := client.Register(context.Background(), testAsset(), []byte(`{"spec_version":"1.0"}`))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if receipt.ContentID != "content-9" || receipt.NetworkID != "network-9" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotManifest != `{"spec_version":"1.0"}` {
		t.Fatalf("unexpected manifest field: %q", gotManifest)
	}
	if gotCaption != "invoice" {
		t.Fatalf("unexpected caption field: %q", gotCaption)
	}
	if string(gotFile) != "png-bytes" {
		t.Fatalf("unexpected file payload: %q", gotFile)
	}
}

func TestRegisterClassifiesInsufficientCreditsByCode(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "insufficient_credits",
			"message": "balance too low",
		})
	})

	_, err := client.Register(context.Background(), testAsset(), []byte("{}"))
	if !errors.Is(err, registrar.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestRegisterClassifiesInsufficientCreditsByMessage(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Insufficient funds for registration"},
		})
	})

	_, err := client.Register(context.Background(), testAsset(), []byte("{}"))
	if !errors.Is(err, registrar.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestRegisterClassifiesUnauthorized(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "bad token"})
	})

	_, err := client.Register(context.Background(), testAsset(), []byte("{}"))
	if !errors.Is(err, registrar.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRegisterClassifiesServerFailureAsTransient(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Register(context.Background(), testAsset(), []byte("{}"))
	if !errors.Is(err, registrar.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestErrorTypeMapping(t *testing.T) {
	if got := registrar.ErrorType(registrar.Wrap(registrar.ErrInsufficientCredits, "register", "low balance", nil)); got != asset.ErrorTypeInsufficientCredits {
		t.Fatalf("expected insufficient_credits tag, got %q", got)
	}
	if got := registrar.ErrorType(registrar.Wrap(registrar.ErrTransient, "register", "timeout", nil)); got != asset.ErrorTypeUploadFailed {
		t.Fatalf("expected upload_failed tag, got %q", got)
	}
}
