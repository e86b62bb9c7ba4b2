package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"
	"time"

	"snapseal/internal/asset"
)

// commandContext is swapped out by tests that stub external tools.
var commandContext = exec.CommandContext

func splitArgv(argv []string) (string, []string, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return "", nil, errors.New("command not configured")
	}
	return argv[0], argv[1:], nil
}

// ExecSnapshotter captures the visible surface by running an external
// screenshot tool (grim on Wayland compositors) that writes PNG to stdout.
type ExecSnapshotter struct {
	Argv []string
}

func (s *ExecSnapshotter) Snapshot(ctx context.Context) (Snapshot, error) {
	name, args, err := splitArgv(s.Argv)
	if err != nil {
		return Snapshot{}, fmt.Errorf("screenshot: %w", err)
	}
	cmd := commandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Snapshot{}, fmt.Errorf("screenshot command %q: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	if len(output) == 0 {
		return Snapshot{}, fmt.Errorf("screenshot command %q produced no output", name)
	}

	width, height := 0, 0
	if config, _, decodeErr := image.DecodeConfig(bytes.NewReader(output)); decodeErr == nil {
		width, height = config.Width, config.Height
	}
	return Snapshot{Payload: output, MIMEType: "image/png", Width: width, Height: height}, nil
}

// ExecRegionSelector runs an interactive selection tool (slurp) that prints
// a geometry of the form "x,y WxH". A non-zero exit or empty output is a
// user cancellation, not an error.
type ExecRegionSelector struct {
	Argv []string
}

func (s *ExecRegionSelector) Select(ctx context.Context) (Region, bool, error) {
	name, args, err := splitArgv(s.Argv)
	if err != nil {
		return Region{}, false, fmt.Errorf("region select: %w", err)
	}
	cmd := commandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Region{}, false, fmt.Errorf("region selection timed out: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Region{}, true, nil
		}
		return Region{}, false, fmt.Errorf("region select command %q: %w", name, err)
	}
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return Region{}, true, nil
	}
	region, err := ParseGeometry(trimmed)
	if err != nil {
		return Region{}, false, fmt.Errorf("region select: %w", err)
	}
	return region, false, nil
}

// ExecTransformer pipes the image through an external watermark tool. The
// capture timestamp is appended as a final RFC 3339 argument so the tool can
// stamp it.
type ExecTransformer struct {
	Argv []string
}

func (t *ExecTransformer) Transform(ctx context.Context, snap Snapshot, capturedAt time.Time) (Snapshot, error) {
	name, args, err := splitArgv(t.Argv)
	if err != nil {
		return Snapshot{}, fmt.Errorf("watermark: %w", err)
	}
	args = append(append([]string(nil), args...), capturedAt.UTC().Format(time.RFC3339))
	cmd := commandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(snap.Payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Snapshot{}, fmt.Errorf("watermark command %q: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	if len(output) == 0 {
		return Snapshot{}, fmt.Errorf("watermark command %q produced no output", name)
	}
	transformed := snap
	transformed.Payload = output
	if config, _, decodeErr := image.DecodeConfig(bytes.NewReader(output)); decodeErr == nil {
		transformed.Width, transformed.Height = config.Width, config.Height
	}
	return transformed, nil
}

// ExecLocator obtains a position fix from an external helper that prints a
// JSON object with latitude, longitude, and accuracy fields.
type ExecLocator struct {
	Argv []string
}

func (l *ExecLocator) Locate(ctx context.Context) (*asset.GPSLocation, error) {
	name, args, err := splitArgv(l.Argv)
	if err != nil {
		return nil, fmt.Errorf("locate: %w", err)
	}
	cmd := commandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("location command %q: %w", name, err)
	}

	var fix struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Accuracy  float64 `json:"accuracy"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(output), &fix); err != nil {
		return nil, fmt.Errorf("decode location output: %w", err)
	}
	return &asset.GPSLocation{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
		Timestamp: time.Now().UTC(),
	}, nil
}
