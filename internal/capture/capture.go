package capture

import (
	"context"
	"time"

	"snapseal/internal/asset"
)

// Outcome distinguishes "nothing happened" from "something broke". A user
// cancelling region selection is not an error.
type Outcome string

const (
	OutcomeCaptured  Outcome = "captured"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeError     Outcome = "error"
)

// Cancellation reasons surfaced to callers.
const (
	ReasonSelectionCancelled = "Selection cancelled"
	ReasonSelectionTooSmall  = "Selection too small"
)

// Region is a rectangular selection in device pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Snapshot is a raw captured image before it becomes an asset.
type Snapshot struct {
	Payload  []byte
	MIMEType string
	Width    int
	Height   int
}

// Request describes one capture attempt.
type Request struct {
	Mode    string
	Caption string
	Source  *asset.SourceWebsite
}

// Result is the terminal outcome of a capture attempt. Exactly one of the
// three outcomes applies; AssetID is set only when captured.
type Result struct {
	Outcome Outcome
	AssetID string
	Reason  string
}

// Snapshotter acquires a raw image of the active display surface.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// RegionSelector runs the interactive selection flow. cancelled reports a
// deliberate user abort as distinct from an error.
type RegionSelector interface {
	Select(ctx context.Context) (region Region, cancelled bool, err error)
}

// Transformer applies the timestamp watermark and product mark. It is an
// opaque image-to-image capability; only the data contract matters here.
type Transformer interface {
	Transform(ctx context.Context, snap Snapshot, capturedAt time.Time) (Snapshot, error)
}

// Locator acquires a best-effort position fix. Implementations return an
// error on denial or timeout; the orchestrator degrades to "no location".
type Locator interface {
	Locate(ctx context.Context) (*asset.GPSLocation, error)
}
