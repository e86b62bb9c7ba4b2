package uploadqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"snapseal/internal/asset"
	"snapseal/internal/blobstore"
	"snapseal/internal/events"
	"snapseal/internal/kvstore"
	"snapseal/internal/logging"
	"snapseal/internal/registrar"
)

// State describes the engine as a whole, not any single asset.
type State string

const (
	StateIdle     State = "idle"
	StateDraining State = "draining"
	StatePaused   State = "paused"
)

const (
	defaultProgressInterval = 500 * time.Millisecond
	defaultRecorder         = "snapseal"
)

// RecorderSource supplies the recorder identifier stamped into each
// registration manifest.
type RecorderSource func(ctx context.Context) (string, error)

// Engine serializes registrations of queued assets, strictly FIFO, one at a
// time. Queue membership is mirrored to the record store before any enqueue
// or dequeue returns, so a crash never loses or duplicates a queued asset.
type Engine struct {
	records  *kvstore.Store
	blobs    *blobstore.Store
	client   registrar.Client
	hub      *events.Hub
	logger   *slog.Logger
	recorder RecorderSource

	progressInterval time.Duration

	mu      sync.Mutex
	ids     []string
	paused  bool
	busy    bool
	started bool

	// persistMu orders membership writes: each mutation's snapshot reaches
	// the record store before the next mutation's snapshot is taken.
	persistMu sync.Mutex

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithProgressInterval overrides the synthetic progress tick interval.
func WithProgressInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.progressInterval = interval
		}
	}
}

// WithRecorderSource overrides where the manifest recorder identifier comes
// from. The default is a fixed product identifier.
func WithRecorderSource(source RecorderSource) Option {
	return func(e *Engine) {
		if source != nil {
			e.recorder = source
		}
	}
}

// New constructs an upload queue engine. Start must be called before any
// enqueue operation.
func New(records *kvstore.Store, blobs *blobstore.Store, client registrar.Client, hub *events.Hub, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	engine := &Engine{
		records:          records,
		blobs:            blobs,
		client:           client,
		hub:              hub,
		logger:           logger.With(logging.String(logging.FieldComponent, "uploadqueue")),
		recorder:         func(context.Context) (string, error) { return defaultRecorder, nil },
		progressInterval: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Start restores queue state from the durable stores and resumes draining
// unless a balance pause was recorded. IDs whose asset no longer exists in
// the blob store are dropped silently.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("upload queue already started")
	}
	e.runCtx, e.cancel = context.WithCancel(ctx)
	e.started = true
	e.mu.Unlock()

	persisted, err := e.records.QueueIDs(ctx)
	if err != nil {
		return fmt.Errorf("restore queue ids: %w", err)
	}
	paused, err := e.records.QueuePaused(ctx)
	if err != nil {
		return fmt.Errorf("restore pause flag: %w", err)
	}

	restored := make([]string, 0, len(persisted))
	for _, id := range persisted {
		if _, getErr := e.blobs.Get(ctx, id); getErr != nil {
			if errors.Is(getErr, blobstore.ErrNotFound) {
				e.logger.Debug("dropping queued id without stored asset",
					logging.String(logging.FieldAssetID, id),
				)
				continue
			}
			return fmt.Errorf("restore queued asset %s: %w", id, getErr)
		}
		restored = append(restored, id)
	}

	pruned := len(restored) != len(persisted)
	err = e.mutateAndPersist(ctx, func() bool {
		e.ids = restored
		e.paused = paused
		return pruned
	})
	if err != nil {
		return fmt.Errorf("persist pruned queue: %w", err)
	}

	e.logger.Info("upload queue restored",
		logging.Int("pending", len(restored)),
		logging.Bool("paused", paused),
	)
	e.kick()
	return nil
}

// Stop halts draining and waits for any in-flight registration to finish.
// There is no mid-upload cancellation; a started drain step runs to its
// outcome.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.started = false
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Enqueue appends assets to the queue by ID. Duplicate IDs are no-ops. The
// persisted ID list reflects the new membership before Enqueue returns.
func (e *Engine) Enqueue(ctx context.Context, ids ...string) error {
	return e.enqueue(ctx, ids, false)
}

// Retry re-adds previously failed assets. Error metadata is cleared on each
// asset and the engine unpauses unconditionally; a manual retry means the
// user believes the blocking condition is resolved. Only failed and draft
// assets are eligible; an asset mid-upload or already uploaded keeps its
// state untouched.
func (e *Engine) Retry(ctx context.Context, ids ...string) error {
	eligible := make([]string, 0, len(ids))
	for _, id := range ids {
		a, err := e.blobs.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("load asset for retry: %w", err)
		}
		switch a.Status {
		case asset.StatusFailed:
			a.Status = asset.StatusDraft
			a.Progress = 0
			a.ClearError()
			if err := e.blobs.Update(ctx, a); err != nil {
				return fmt.Errorf("clear error metadata: %w", err)
			}
		case asset.StatusDraft:
		default:
			return fmt.Errorf("asset %s is %s; only failed or draft assets can be retried", id, a.Status)
		}
		eligible = append(eligible, id)
	}
	return e.enqueue(ctx, eligible, true)
}

func (e *Engine) enqueue(ctx context.Context, ids []string, manualRetry bool) error {
	var unpause bool
	err := e.mutateAndPersist(ctx, func() bool {
		present := make(map[string]struct{}, len(e.ids))
		for _, id := range e.ids {
			present[id] = struct{}{}
		}
		appended := false
		for _, id := range ids {
			if _, ok := present[id]; ok {
				continue
			}
			present[id] = struct{}{}
			e.ids = append(e.ids, id)
			appended = true
		}
		unpause = manualRetry && e.paused
		if unpause {
			e.paused = false
		}
		return appended
	})
	if err != nil {
		return fmt.Errorf("persist queue ids: %w", err)
	}
	if manualRetry {
		if err := e.records.SetQueuePaused(ctx, false); err != nil {
			return fmt.Errorf("persist pause flag: %w", err)
		}
		if unpause {
			e.publish(events.Event{Type: events.TypeQueueResumed})
		}
	}
	e.kick()
	return nil
}

// SetPaused pauses or resumes draining. Pausing lets any in-flight
// registration finish but starts no new drain step. The flag is persisted so
// a balance pause survives a daemon restart.
func (e *Engine) SetPaused(ctx context.Context, paused bool) error {
	e.mu.Lock()
	changed := e.paused != paused
	e.paused = paused
	e.mu.Unlock()

	if err := e.records.SetQueuePaused(ctx, paused); err != nil {
		return fmt.Errorf("persist pause flag: %w", err)
	}
	if changed {
		if paused {
			e.publish(events.Event{Type: events.TypeQueuePaused})
		} else {
			e.publish(events.Event{Type: events.TypeQueueResumed})
		}
	}
	if !paused {
		e.kick()
	}
	return nil
}

// Remove drops an asset from the queue and deletes its stored record.
func (e *Engine) Remove(ctx context.Context, id string) error {
	err := e.mutateAndPersist(ctx, func() bool {
		filtered := e.ids[:0]
		for _, queued := range e.ids {
			if queued != id {
				filtered = append(filtered, queued)
			}
		}
		e.ids = filtered
		return true
	})
	if err != nil {
		return fmt.Errorf("persist queue ids: %w", err)
	}
	if _, err := e.blobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// State reports the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.paused:
		return StatePaused
	case e.busy:
		return StateDraining
	default:
		return StateIdle
	}
}

// PendingIDs returns a copy of the queued asset IDs in drain order.
func (e *Engine) PendingIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ids...)
}

// mutateAndPersist applies a membership mutation under e.mu and writes the
// resulting snapshot while holding persistMu, so concurrent mutations cannot
// land their snapshots in inverted order. The mutation reports whether the
// membership changed; unchanged membership skips the durable write.
func (e *Engine) mutateAndPersist(ctx context.Context, mutate func() bool) error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	changed := mutate()
	snapshot := append([]string(nil), e.ids...)
	e.mu.Unlock()

	if !changed {
		return nil
	}
	return e.records.SetQueueIDs(ctx, snapshot)
}

func (e *Engine) publish(event events.Event) {
	if e.hub != nil {
		e.hub.Publish(event)
	}
}
