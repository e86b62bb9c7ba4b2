package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"snapseal/internal/asset"
	"snapseal/internal/blobstore"
	"snapseal/internal/capture"
	"snapseal/internal/config"
	"snapseal/internal/events"
	"snapseal/internal/kvstore"
	"snapseal/internal/logging"
	"snapseal/internal/uploadqueue"
	"snapseal/internal/watcher"
)

// Daemon coordinates the capture and upload services and enforces
// single-instance execution via a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	records  *kvstore.Store
	blobs    *blobstore.Store
	engine   *uploadqueue.Engine
	capturer *capture.Orchestrator
	inbox    *watcher.Watcher
	hub      *events.Hub
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	QueueState    uploadqueue.State
	Pending       []string
	Drafts        int64
	Failed        int64
	LoggedIn      bool
	RecordsDBPath string
	AssetsDBPath  string
	LockFilePath  string
	SocketPath    string
}

// New constructs a daemon with initialized dependencies. The inbox watcher
// is optional; pass nil when disabled.
func New(cfg *config.Config, records *kvstore.Store, blobs *blobstore.Store, engine *uploadqueue.Engine, capturer *capture.Orchestrator, inbox *watcher.Watcher, hub *events.Hub, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || records == nil || blobs == nil || engine == nil || capturer == nil {
		return nil, errors.New("daemon requires config, stores, engine, and capture orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		records:  records,
		blobs:    blobs,
		engine:   engine,
		capturer: capturer,
		inbox:    inbox,
		hub:      hub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the lock and launches the upload engine, the inbox watcher,
// and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another snapseal daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.engine.Start(d.ctx); err != nil {
		d.releaseStartup()
		return fmt.Errorf("start upload queue: %w", err)
	}
	if d.inbox != nil {
		if err := d.inbox.Start(d.ctx); err != nil {
			d.engine.Stop()
			d.releaseStartup()
			return fmt.Errorf("start inbox watcher: %w", err)
		}
	}
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			if d.inbox != nil {
				d.inbox.Stop()
			}
			d.engine.Stop()
			d.releaseStartup()
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("snapseal daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStartup() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock. Any
// in-flight registration finishes first.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.inbox != nil {
		d.inbox.Stop()
	}
	d.engine.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("snapseal daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.blobs != nil {
		if err := d.blobs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.records != nil {
		if err := d.records.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status reports queue and storage state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		QueueState:    d.engine.State(),
		Pending:       d.engine.PendingIDs(),
		RecordsDBPath: d.cfg.RecordsDBPath(),
		AssetsDBPath:  d.cfg.AssetsDBPath(),
		LockFilePath:  d.lockPath,
		SocketPath:    d.cfg.SocketPath(),
	}
	if drafts, err := d.blobs.Count(ctx, asset.StatusDraft); err == nil {
		status.Drafts = drafts
	}
	if failed, err := d.blobs.Count(ctx, asset.StatusFailed); err == nil {
		status.Failed = failed
	}
	status.LoggedIn = d.loggedIn(ctx)
	return status
}

// Hub exposes the event bus for IPC and API subscribers.
func (d *Daemon) Hub() *events.Hub {
	return d.hub
}

// APIAddr returns the bound API address, or "" when the API is disabled or
// not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}
