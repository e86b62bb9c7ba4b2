package uploadqueue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"snapseal/internal/asset"
	"snapseal/internal/blobstore"
	"snapseal/internal/events"
	"snapseal/internal/logging"
	"snapseal/internal/registrar"
)

// kick starts a drain goroutine unless one is already running, the engine is
// paused, or the queue is empty. Concurrent kicks while busy are no-ops.
func (e *Engine) kick() {
	e.mu.Lock()
	if !e.started || e.busy || e.paused || len(e.ids) == 0 {
		e.mu.Unlock()
		return
	}
	e.busy = true
	ctx := e.runCtx
	e.mu.Unlock()

	e.wg.Add(1)
	go e.drain(ctx)
}

func (e *Engine) drain(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			e.setIdle()
			return
		default:
		}

		e.mu.Lock()
		if e.paused || len(e.ids) == 0 {
			e.busy = false
			e.mu.Unlock()
			return
		}
		id := e.ids[0]
		e.mu.Unlock()

		e.processOne(ctx, id)

		if err := e.dequeue(ctx, id); err != nil {
			e.logger.Error("failed to persist queue after drain step",
				logging.String(logging.FieldAssetID, id),
				logging.Error(err),
			)
			e.setIdle()
			return
		}
	}
}

func (e *Engine) setIdle() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

func (e *Engine) dequeue(ctx context.Context, id string) error {
	return e.mutateAndPersist(ctx, func() bool {
		filtered := e.ids[:0]
		for _, queued := range e.ids {
			if queued != id {
				filtered = append(filtered, queued)
			}
		}
		e.ids = filtered
		return true
	})
}

// processOne performs a single drain step: mark the asset uploading, submit
// it, and durably record the outcome. A missing asset is skipped silently.
func (e *Engine) processOne(ctx context.Context, id string) {
	a, err := e.blobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			e.logger.Debug("queued asset no longer stored; skipping",
				logging.String(logging.FieldAssetID, id),
			)
			return
		}
		e.logger.Error("failed to load queued asset",
			logging.String(logging.FieldAssetID, id),
			logging.Error(err),
		)
		return
	}

	a.SetUploading()
	if err := e.blobs.Update(ctx, a); err != nil {
		e.logger.Error("failed to mark asset uploading",
			logging.String(logging.FieldAssetID, id),
			logging.Error(err),
		)
		return
	}
	e.publish(events.Event{
		Type:     events.TypeUploadProgress,
		AssetID:  a.ID,
		Progress: 0,
	})

	stopProgress := e.startSyntheticProgress(ctx, a.ID)
	receipt, regErr := e.register(ctx, a)
	stopProgress()

	if regErr == nil {
		e.recordSuccess(ctx, a, receipt)
		return
	}
	e.recordFailure(ctx, a, regErr)
}

func (e *Engine) register(ctx context.Context, a *asset.Asset) (registrar.Receipt, error) {
	recorder, err := e.recorder(ctx)
	if err != nil {
		return registrar.Receipt{}, registrar.Wrap(registrar.ErrUnauthorized, "register", "resolve recorder", err)
	}
	manifest, err := asset.BuildManifest(a, recorder)
	if err != nil {
		return registrar.Receipt{}, registrar.Wrap(registrar.ErrRejected, "register", "build manifest", err)
	}
	return e.client.Register(ctx, a, manifest)
}

// recordSuccess persists the uploaded status, then deletes the asset record.
// Uploaded assets are not retained locally; only the remote identifiers are
// surfaced via the completion event.
func (e *Engine) recordSuccess(ctx context.Context, a *asset.Asset, receipt registrar.Receipt) {
	a.SetUploaded(receipt.ContentID, receipt.NetworkID)
	if err := e.blobs.Update(ctx, a); err != nil {
		e.logger.Error("failed to record uploaded status",
			logging.String(logging.FieldAssetID, a.ID),
			logging.Error(err),
		)
		return
	}
	e.publish(events.Event{
		Type:     events.TypeUploadProgress,
		AssetID:  a.ID,
		Progress: 1,
	})
	if _, err := e.blobs.Delete(ctx, a.ID); err != nil {
		e.logger.Warn("failed to delete uploaded asset",
			logging.String(logging.FieldAssetID, a.ID),
			logging.Error(err),
		)
	}
	e.publish(events.Event{
		Type:    events.TypeUploadComplete,
		AssetID: a.ID,
		Fields: map[string]string{
			"content_id": receipt.ContentID,
			"network_id": receipt.NetworkID,
		},
	})
	e.logger.Info("asset registered",
		logging.String(logging.FieldAssetID, a.ID),
		logging.String("content_id", receipt.ContentID),
	)
}

// recordFailure persists the failed status with its classification. A
// balance-exhaustion failure pauses the whole engine and re-arms the credit
// warning; any other failure lets the queue continue with the next asset.
func (e *Engine) recordFailure(ctx context.Context, a *asset.Asset, regErr error) {
	errType := registrar.ErrorType(regErr)
	a.SetFailed(strings.TrimSpace(regErr.Error()), errType)
	if err := e.blobs.Update(ctx, a); err != nil {
		e.logger.Error("failed to record failed status",
			logging.String(logging.FieldAssetID, a.ID),
			logging.Error(err),
		)
	}
	e.publish(events.Event{
		Type:      events.TypeUploadFailed,
		AssetID:   a.ID,
		Message:   a.ErrorMessage,
		ErrorType: errType,
	})
	e.logger.Warn("asset registration failed",
		logging.String(logging.FieldAssetID, a.ID),
		logging.String(logging.FieldErrorType, errType),
		logging.Error(regErr),
	)

	if !errors.Is(regErr, registrar.ErrInsufficientCredits) {
		return
	}

	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	if err := e.records.SetQueuePaused(ctx, true); err != nil {
		e.logger.Error("failed to persist pause flag", logging.Error(err))
	}
	if err := e.records.SetCreditWarningDismissed(ctx, false); err != nil {
		e.logger.Warn("failed to re-arm credit warning", logging.Error(err))
	}
	e.publish(events.Event{Type: events.TypeQueuePaused, Message: a.ErrorMessage})
}

// startSyntheticProgress emits incremental progress events stepping toward
// 0.9 while a registration is in flight. Cosmetic only; terminal progress
// values come from the drain step itself.
func (e *Engine) startSyntheticProgress(ctx context.Context, id string) func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.progressInterval)
		defer ticker.Stop()
		fraction := 0.0
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if fraction < 0.9 {
					fraction += 0.1
					if fraction > 0.9 {
						fraction = 0.9
					}
					e.publish(events.Event{
						Type:     events.TypeUploadProgress,
						AssetID:  id,
						Progress: fraction,
					})
				}
			}
		}
	}()
	return stop
}
