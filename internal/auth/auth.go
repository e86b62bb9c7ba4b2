// Package auth stores the registry credentials used when registering
// captures with the remote service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"snapseal/internal/kvstore"
)

// ErrNotLoggedIn indicates no credentials are stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Credentials identify this recorder to the registry.
type Credentials struct {
	Token      string
	RecorderID string
}

// Load reads stored credentials. Returns ErrNotLoggedIn when absent.
func Load(ctx context.Context, store *kvstore.Store) (Credentials, error) {
	token, err := store.Get(ctx, kvstore.KeyAuthToken)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Credentials{}, ErrNotLoggedIn
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("load auth token: %w", err)
	}
	recorder, err := store.Get(ctx, kvstore.KeyRecorderID)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return Credentials{}, fmt.Errorf("load recorder id: %w", err)
	}
	return Credentials{Token: token, RecorderID: recorder}, nil
}

// Save persists credentials after a successful login.
func Save(ctx context.Context, store *kvstore.Store, creds Credentials) error {
	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return errors.New("token must not be empty")
	}
	if err := store.Set(ctx, kvstore.KeyAuthToken, token); err != nil {
		return fmt.Errorf("save auth token: %w", err)
	}
	recorder := strings.TrimSpace(creds.RecorderID)
	if recorder == "" {
		if err := store.Delete(ctx, kvstore.KeyRecorderID); err != nil {
			return fmt.Errorf("clear recorder id: %w", err)
		}
		return nil
	}
	if err := store.Set(ctx, kvstore.KeyRecorderID, recorder); err != nil {
		return fmt.Errorf("save recorder id: %w", err)
	}
	return nil
}

// Clear removes stored credentials.
func Clear(ctx context.Context, store *kvstore.Store) error {
	if err := store.Delete(ctx, kvstore.KeyAuthToken); err != nil {
		return fmt.Errorf("clear auth token: %w", err)
	}
	if err := store.Delete(ctx, kvstore.KeyRecorderID); err != nil {
		return fmt.Errorf("clear recorder id: %w", err)
	}
	return nil
}
