package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"snapseal/internal/asset"
	"snapseal/internal/auth"
	"snapseal/internal/capture"
	"snapseal/internal/logging"
	"snapseal/internal/settings"
)

// Capture runs one capture attempt through the orchestrator.
func (d *Daemon) Capture(ctx context.Context, req capture.Request) capture.Result {
	return d.capturer.Capture(ctx, req)
}

// Upload enqueues existing draft or failed assets for registration.
func (d *Daemon) Upload(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return errors.New("upload requires at least one asset id")
	}
	for _, id := range ids {
		if _, err := d.blobs.Get(ctx, id); err != nil {
			return fmt.Errorf("asset %s: %w", id, err)
		}
	}
	return d.engine.Enqueue(ctx, ids...)
}

// Assets lists stored assets, optionally filtered by status. Payloads are
// stripped; callers needing bytes use GetAsset.
func (d *Daemon) Assets(ctx context.Context, statuses ...asset.Status) ([]*asset.Asset, error) {
	assets, err := d.blobs.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		a.Payload = nil
	}
	return assets, nil
}

// GetAsset fetches a single asset including its payload.
func (d *Daemon) GetAsset(ctx context.Context, id string) (*asset.Asset, error) {
	return d.blobs.Get(ctx, id)
}

// Retry re-enqueues failed assets as a manual retry.
func (d *Daemon) Retry(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return errors.New("retry requires at least one asset id")
	}
	return d.engine.Retry(ctx, ids...)
}

// Remove drops an asset from the queue and deletes it.
func (d *Daemon) Remove(ctx context.Context, id string) error {
	return d.engine.Remove(ctx, id)
}

// SetPaused pauses or resumes the upload queue.
func (d *Daemon) SetPaused(ctx context.Context, paused bool) error {
	return d.engine.SetPaused(ctx, paused)
}

// ClearFailed deletes all failed assets.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	failed, err := d.blobs.List(ctx, asset.StatusFailed)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, a := range failed {
		ok, err := d.blobs.Delete(ctx, a.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		d.logger.Info("failed assets cleared", logging.Int64("removed_count", removed))
	}
	return removed, nil
}

// Settings returns current user preferences.
func (d *Daemon) Settings(ctx context.Context) settings.Settings {
	return settings.Load(ctx, d.records)
}

// UpdateSettings persists user preferences.
func (d *Daemon) UpdateSettings(ctx context.Context, s settings.Settings) error {
	return settings.Save(ctx, d.records, s)
}

// Login stores registry credentials.
func (d *Daemon) Login(ctx context.Context, token, recorderID string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("login requires a token")
	}
	return auth.Save(ctx, d.records, auth.Credentials{Token: token, RecorderID: recorderID})
}

// Logout clears stored credentials.
func (d *Daemon) Logout(ctx context.Context) error {
	return auth.Clear(ctx, d.records)
}

func (d *Daemon) loggedIn(ctx context.Context) bool {
	_, err := auth.Load(ctx, d.records)
	return err == nil
}
