package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"
)

// ParseGeometry parses the selector output format "x,y WxH".
func ParseGeometry(value string) (Region, error) {
	fields := strings.Fields(strings.TrimSpace(value))
	if len(fields) != 2 {
		return Region{}, fmt.Errorf("malformed geometry %q", value)
	}

	origin := strings.SplitN(fields[0], ",", 2)
	size := strings.SplitN(fields[1], "x", 2)
	if len(origin) != 2 || len(size) != 2 {
		return Region{}, fmt.Errorf("malformed geometry %q", value)
	}

	parts := [4]string{origin[0], origin[1], size[0], size[1]}
	values := [4]int{}
	for i, part := range parts {
		parsed, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Region{}, fmt.Errorf("malformed geometry %q: %w", value, err)
		}
		values[i] = parsed
	}
	return Region{X: values[0], Y: values[1], Width: values[2], Height: values[3]}, nil
}

// cropSnapshot decodes the snapshot, crops it to the region clamped to the
// image bounds, and re-encodes as PNG.
func cropSnapshot(snap Snapshot, region Region) (Snapshot, error) {
	img, _, err := image.Decode(bytes.NewReader(snap.Payload))
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	bounds := img.Bounds()
	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height).Intersect(bounds)
	if rect.Empty() {
		return Snapshot{}, fmt.Errorf("selection %dx%d at %d,%d lies outside the %dx%d snapshot",
			region.Width, region.Height, region.X, region.Y, bounds.Dx(), bounds.Dy())
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	cropper, ok := img.(subImager)
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot image type %T does not support cropping", img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropper.SubImage(rect)); err != nil {
		return Snapshot{}, fmt.Errorf("encode cropped snapshot: %w", err)
	}
	return Snapshot{
		Payload:  buf.Bytes(),
		MIMEType: "image/png",
		Width:    rect.Dx(),
		Height:   rect.Dy(),
	}, nil
}
