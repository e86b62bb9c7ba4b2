package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ManifestSpecVersion marks the signed-metadata document schema.
const ManifestSpecVersion = "1.0"

// BuildManifest produces the canonical signed-metadata document submitted
// alongside the payload bytes. Key order is deterministic (lexicographic),
// so two builds over an unchanged asset are byte-for-byte identical and any
// downstream signature or hash is reproducible.
func BuildManifest(a *Asset, recorder string) ([]byte, error) {
	if a == nil {
		return nil, errors.New("asset is nil")
	}
	recorder = strings.TrimSpace(recorder)
	if recorder == "" {
		return nil, errors.New("recorder identifier is required")
	}

	doc := map[string]any{
		"spec_version": ManifestSpecVersion,
		"recorder":     recorder,
		"captured_at":  a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if a.GPS != nil {
		doc["location"] = map[string]any{
			"latitude":  a.GPS.Latitude,
			"longitude": a.GPS.Longitude,
			"accuracy":  a.GPS.Accuracy,
			"timestamp": a.GPS.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	}
	if a.Source != nil {
		doc["source"] = map[string]any{
			"url":   a.Source.URL,
			"title": a.Source.Title,
		}
	}

	// encoding/json sorts map keys, which is what makes the document canonical.
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}
