// Package watcher ingests image files dropped into the inbox directory as
// file-mode captures.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"snapseal/internal/capture"
	"snapseal/internal/logging"
)

const defaultSettleDelay = 750 * time.Millisecond

var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// Ingester receives the contents of settled inbox files.
type Ingester interface {
	IngestFile(ctx context.Context, payload []byte, mimeType, caption string) capture.Result
}

// Watcher monitors the inbox directory and hands finished files to the
// capture pipeline. A per-file settle delay avoids ingesting files still
// being written.
type Watcher struct {
	dir         string
	ingester    Ingester
	logger      *slog.Logger
	settleDelay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	started bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a watcher over dir. A zero settle delay uses the default.
func New(dir string, ingester Ingester, logger *slog.Logger, settleDelay time.Duration) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if settleDelay <= 0 {
		settleDelay = defaultSettleDelay
	}
	return &Watcher{
		dir:         dir,
		ingester:    ingester,
		logger:      logger.With(logging.String(logging.FieldComponent, "watcher")),
		settleDelay: settleDelay,
		pending:     make(map[string]*time.Timer),
	}
}

// Start begins watching. Files already present in the inbox are ingested on
// startup so drops made while the daemon was down are not lost.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("watcher already started")
	}
	w.started = true
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := notify.Add(w.dir); err != nil {
		notify.Close()
		return fmt.Errorf("watch inbox %q: %w", w.dir, err)
	}

	if err := w.ingestExisting(runCtx); err != nil {
		w.logger.Warn("inbox sweep failed", logging.Error(err))
	}

	w.wg.Add(1)
	go w.run(runCtx, notify)

	w.logger.Info("inbox watcher started", logging.String("dir", w.dir))
	return nil
}

// Stop terminates watching and waits for in-flight ingestion to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.started = false
	w.cancel = nil
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context, notify *fsnotify.Watcher) {
	defer w.wg.Done()
	defer notify.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-notify.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !eligible(event.Name) {
				continue
			}
			w.scheduleSettle(ctx, event.Name)
		case err, ok := <-notify.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// scheduleSettle (re)arms the settle timer for a path. Each write resets the
// timer so the file is only ingested once it stops changing.
func (w *Watcher) scheduleSettle(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.ingest(ctx, path)
	})
}

func (w *Watcher) ingestExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if eligible(path) {
			w.ingest(ctx, path)
		}
	}
	return nil
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	payload, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("failed to read inbox file",
			logging.String("path", path),
			logging.Error(err),
		)
		return
	}

	mimeType := mimeByExtension[strings.ToLower(filepath.Ext(path))]
	result := w.ingester.IngestFile(ctx, payload, mimeType, "")
	if result.Outcome != capture.OutcomeCaptured {
		w.logger.Warn("inbox ingestion failed",
			logging.String("path", path),
			logging.String("reason", result.Reason),
		)
		return
	}

	// The file is consumed once it is durably stored as an asset.
	if err := os.Remove(path); err != nil {
		w.logger.Warn("failed to remove ingested file",
			logging.String("path", path),
			logging.Error(err),
		)
	}
	w.logger.Info("inbox file ingested",
		logging.String("path", path),
		logging.String(logging.FieldAssetID, result.AssetID),
	)
}

func eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	_, ok := mimeByExtension[strings.ToLower(filepath.Ext(path))]
	return ok
}
