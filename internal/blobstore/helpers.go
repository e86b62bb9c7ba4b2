package blobstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snapseal/internal/asset"
)

const assetColumns = "id, mime_type, payload, width, height, capture_mode, status, progress, error_message, error_type, caption, gps_json, source_json, remote_content_id, remote_network_id, extra_json, created_at, updated_at"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*asset.Asset, error) {
	var (
		id              string
		mimeType        string
		payload         []byte
		width           int
		height          int
		captureMode     sql.NullString
		statusStr       string
		progress        sql.NullFloat64
		errorMessage    sql.NullString
		errorType       sql.NullString
		caption         sql.NullString
		gpsRaw          sql.NullString
		sourceRaw       sql.NullString
		remoteContentID sql.NullString
		remoteNetworkID sql.NullString
		extraRaw        sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&mimeType,
		&payload,
		&width,
		&height,
		&captureMode,
		&statusStr,
		&progress,
		&errorMessage,
		&errorType,
		&caption,
		&gpsRaw,
		&sourceRaw,
		&remoteContentID,
		&remoteNetworkID,
		&extraRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	a := &asset.Asset{
		ID:              id,
		MIMEType:        mimeType,
		Payload:         payload,
		Width:           width,
		Height:          height,
		CaptureMode:     captureMode.String,
		Status:          asset.Status(statusStr),
		Progress:        progress.Float64,
		ErrorMessage:    errorMessage.String,
		ErrorType:       errorType.String,
		Caption:         caption.String,
		RemoteContentID: remoteContentID.String,
		RemoteNetworkID: remoteNetworkID.String,
	}

	if gpsRaw.Valid && gpsRaw.String != "" {
		var gps asset.GPSLocation
		if err := json.Unmarshal([]byte(gpsRaw.String), &gps); err != nil {
			return nil, fmt.Errorf("decode gps column: %w", err)
		}
		a.GPS = &gps
	}
	if sourceRaw.Valid && sourceRaw.String != "" {
		var source asset.SourceWebsite
		if err := json.Unmarshal([]byte(sourceRaw.String), &source); err != nil {
			return nil, fmt.Errorf("decode source column: %w", err)
		}
		a.Source = &source
	}
	if extraRaw.Valid && extraRaw.String != "" {
		extra := map[string]string{}
		if err := json.Unmarshal([]byte(extraRaw.String), &extra); err != nil {
			return nil, fmt.Errorf("decode extra column: %w", err)
		}
		a.Extra = extra
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		a.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		a.UpdatedAt = updated
	}
	return a, nil
}

func encodeOptionalColumns(a *asset.Asset) (gpsJSON, sourceJSON, extraJSON any, err error) {
	if a.GPS != nil {
		data, marshalErr := json.Marshal(a.GPS)
		if marshalErr != nil {
			return nil, nil, nil, fmt.Errorf("encode gps column: %w", marshalErr)
		}
		gpsJSON = string(data)
	}
	if a.Source != nil {
		data, marshalErr := json.Marshal(a.Source)
		if marshalErr != nil {
			return nil, nil, nil, fmt.Errorf("encode source column: %w", marshalErr)
		}
		sourceJSON = string(data)
	}
	if len(a.Extra) > 0 {
		data, marshalErr := json.Marshal(a.Extra)
		if marshalErr != nil {
			return nil, nil, nil, fmt.Errorf("encode extra column: %w", marshalErr)
		}
		extraJSON = string(data)
	}
	return gpsJSON, sourceJSON, extraJSON, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
