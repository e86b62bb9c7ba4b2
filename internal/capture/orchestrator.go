package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"snapseal/internal/asset"
	"snapseal/internal/auth"
	"snapseal/internal/blobstore"
	"snapseal/internal/config"
	"snapseal/internal/events"
	"snapseal/internal/kvstore"
	"snapseal/internal/logging"
	"snapseal/internal/settings"
)

const (
	defaultSelectionTimeout = 60 * time.Second
	defaultLocationTimeout  = 5 * time.Second
	defaultMinRegionPx      = 10
)

// Enqueuer hands captured assets to the upload queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, ids ...string) error
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Snapshotter Snapshotter
	Selector    RegionSelector
	Transformer Transformer
	Locator     Locator

	Blobs   *blobstore.Store
	Records *kvstore.Store
	Queue   Enqueuer
	Hub     *events.Hub
	Logger  *slog.Logger

	SelectionTimeout time.Duration
	LocationTimeout  time.Duration
	MinRegionPx      int
}

// Orchestrator turns a raw screen capture into a persisted draft asset and,
// when auto-upload applies, hands it to the queue engine.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator builds an orchestrator from explicit collaborators.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	deps.Logger = deps.Logger.With(logging.String(logging.FieldComponent, "capture"))
	if deps.SelectionTimeout <= 0 {
		deps.SelectionTimeout = defaultSelectionTimeout
	}
	if deps.LocationTimeout <= 0 {
		deps.LocationTimeout = defaultLocationTimeout
	}
	if deps.MinRegionPx <= 0 {
		deps.MinRegionPx = defaultMinRegionPx
	}
	return &Orchestrator{deps: deps}
}

// NewFromConfig builds an orchestrator whose collaborators run the external
// commands named in the configuration. Unconfigured optional commands yield
// nil collaborators; those steps are skipped.
func NewFromConfig(cfg *config.Config, blobs *blobstore.Store, records *kvstore.Store, queue Enqueuer, hub *events.Hub, logger *slog.Logger) *Orchestrator {
	deps := Deps{
		Snapshotter:      &ExecSnapshotter{Argv: cfg.Capture.ScreenshotCommand},
		Blobs:            blobs,
		Records:          records,
		Queue:            queue,
		Hub:              hub,
		Logger:           logger,
		SelectionTimeout: time.Duration(cfg.Capture.SelectionTimeout) * time.Second,
		LocationTimeout:  time.Duration(cfg.Capture.LocationTimeout) * time.Second,
		MinRegionPx:      cfg.Capture.MinRegionPx,
	}
	if len(cfg.Capture.RegionSelectCommand) > 0 {
		deps.Selector = &ExecRegionSelector{Argv: cfg.Capture.RegionSelectCommand}
	}
	if len(cfg.Capture.WatermarkCommand) > 0 {
		deps.Transformer = &ExecTransformer{Argv: cfg.Capture.WatermarkCommand}
	}
	if len(cfg.Capture.LocationCommand) > 0 {
		deps.Locator = &ExecLocator{Argv: cfg.Capture.LocationCommand}
	}
	return NewOrchestrator(deps)
}

// Capture runs one capture attempt end to end. The returned Result is always
// terminal: captured with an asset ID, cancelled with a reason, or an error
// with a reason. Optional enrichment failures never abort the capture.
func (o *Orchestrator) Capture(ctx context.Context, req Request) Result {
	st := settings.Load(ctx, o.deps.Records)

	snap, err := o.deps.Snapshotter.Snapshot(ctx)
	if err != nil {
		return o.errorResult("", "snapshot failed", err)
	}

	if req.Mode == asset.ModeRegion {
		region, outcome := o.selectRegion(ctx)
		if outcome != nil {
			return *outcome
		}
		cropped, cropErr := cropSnapshot(snap, region)
		if cropErr != nil {
			return o.errorResult("", "crop failed", cropErr)
		}
		snap = cropped
	}

	capturedAt := time.Now().UTC()
	if st.TimestampStamp && o.deps.Transformer != nil {
		stamped, stampErr := o.deps.Transformer.Transform(ctx, snap, capturedAt)
		if stampErr != nil {
			return o.errorResult("", "watermark failed", stampErr)
		}
		snap = stamped
	}

	a := asset.New(snap.Payload, snap.MIMEType, snap.Width, snap.Height, req.Mode)
	a.Caption = req.Caption
	if a.Caption == "" {
		a.Caption = st.DefaultCaption
	}
	if st.AttachSource && req.Source != nil {
		a.Source = req.Source
	}
	if st.LocationEnabled {
		a.GPS = o.locate(ctx)
	}

	return o.persistAndEnqueue(ctx, a, st)
}

// IngestFile persists an already-rendered image as a draft asset. Used for
// inbox files; no selection or watermark step applies.
func (o *Orchestrator) IngestFile(ctx context.Context, payload []byte, mimeType, caption string) Result {
	st := settings.Load(ctx, o.deps.Records)

	width, height := 0, 0
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(payload)); err == nil {
		width, height = cfg.Width, cfg.Height
	}

	a := asset.New(payload, mimeType, width, height, asset.ModeFile)
	a.Caption = caption
	if a.Caption == "" {
		a.Caption = st.DefaultCaption
	}
	return o.persistAndEnqueue(ctx, a, st)
}

// selectRegion runs the bounded interactive selection flow. A nil second
// return means selection produced a usable region.
func (o *Orchestrator) selectRegion(ctx context.Context) (Region, *Result) {
	if o.deps.Selector == nil {
		result := o.errorResult("", "region selection unavailable", errors.New("no selector configured"))
		return Region{}, &result
	}

	selectCtx, cancel := context.WithTimeout(ctx, o.deps.SelectionTimeout)
	defer cancel()

	region, cancelled, err := o.deps.Selector.Select(selectCtx)
	if err != nil {
		result := o.errorResult("", "region selection failed", err)
		return Region{}, &result
	}
	if cancelled {
		result := o.cancelledResult(ReasonSelectionCancelled)
		return Region{}, &result
	}
	if region.Width < o.deps.MinRegionPx || region.Height < o.deps.MinRegionPx {
		result := o.cancelledResult(ReasonSelectionTooSmall)
		return Region{}, &result
	}
	return region, nil
}

// locate acquires a best-effort fix. Denial or timeout degrades to nil.
func (o *Orchestrator) locate(ctx context.Context) *asset.GPSLocation {
	if o.deps.Locator == nil {
		return nil
	}
	locateCtx, cancel := context.WithTimeout(ctx, o.deps.LocationTimeout)
	defer cancel()

	fix, err := o.deps.Locator.Locate(locateCtx)
	if err != nil {
		o.deps.Logger.Debug("location unavailable; capturing without it", logging.Error(err))
		return nil
	}
	return fix
}

func (o *Orchestrator) persistAndEnqueue(ctx context.Context, a *asset.Asset, st settings.Settings) Result {
	if err := o.deps.Blobs.Put(ctx, a); err != nil {
		return o.errorResult(a.ID, "persist draft failed", err)
	}
	o.publish(events.Event{Type: events.TypeCaptureResult, AssetID: a.ID})
	o.deps.Logger.Info("asset captured",
		logging.String(logging.FieldAssetID, a.ID),
		logging.String("mode", a.CaptureMode),
	)

	if st.AutoUpload && o.deps.Queue != nil && o.authenticated(ctx) {
		if err := o.deps.Queue.Enqueue(ctx, a.ID); err != nil {
			o.deps.Logger.Warn("auto-upload enqueue failed; asset kept as draft",
				logging.String(logging.FieldAssetID, a.ID),
				logging.Error(err),
			)
		}
	}
	return Result{Outcome: OutcomeCaptured, AssetID: a.ID}
}

func (o *Orchestrator) authenticated(ctx context.Context) bool {
	_, err := auth.Load(ctx, o.deps.Records)
	return err == nil
}

func (o *Orchestrator) cancelledResult(reason string) Result {
	o.publish(events.Event{Type: events.TypeCaptureResult, Message: reason})
	o.deps.Logger.Info("capture cancelled", logging.String("reason", reason))
	return Result{Outcome: OutcomeCancelled, Reason: reason}
}

func (o *Orchestrator) errorResult(assetID, step string, err error) Result {
	o.deps.Logger.Error("capture failed",
		logging.String("step", step),
		logging.Error(err),
	)
	reason := step + ": " + err.Error()
	o.publish(events.Event{Type: events.TypeCaptureResult, AssetID: assetID, Message: reason})
	return Result{Outcome: OutcomeError, AssetID: assetID, Reason: reason}
}

func (o *Orchestrator) publish(event events.Event) {
	if o.deps.Hub != nil {
		o.deps.Hub.Publish(event)
	}
}
