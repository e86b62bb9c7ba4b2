package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"snapseal/internal/asset"
)

// ErrNotFound indicates the requested asset does not exist.
var ErrNotFound = errors.New("asset not found")

// Store persists full asset records, image payloads included, in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the asset database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS assets (
    id TEXT PRIMARY KEY,
    mime_type TEXT NOT NULL,
    payload BLOB NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    capture_mode TEXT,
    status TEXT NOT NULL,
    progress REAL NOT NULL DEFAULT 0,
    error_message TEXT,
    error_type TEXT,
    caption TEXT,
    gps_json TEXT,
    source_json TEXT,
    remote_content_id TEXT,
    remote_network_id TEXT,
    extra_json TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);
CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init asset schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Put inserts a new asset record.
func (s *Store) Put(ctx context.Context, a *asset.Asset) error {
	if a == nil {
		return errors.New("asset is nil")
	}
	gpsJSON, sourceJSON, extraJSON, err := encodeOptionalColumns(a)
	if err != nil {
		return err
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO assets (
            id, mime_type, payload, width, height, capture_mode, status, progress,
            error_message, error_type, caption, gps_json, source_json,
            remote_content_id, remote_network_id, extra_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.MIMEType,
		a.Payload,
		a.Width,
		a.Height,
		nullableString(a.CaptureMode),
		string(a.Status),
		a.Progress,
		nullableString(a.ErrorMessage),
		nullableString(a.ErrorType),
		nullableString(a.Caption),
		gpsJSON,
		sourceJSON,
		nullableString(a.RemoteContentID),
		nullableString(a.RemoteNetworkID),
		extraJSON,
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
		a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Get fetches an asset by identifier.
func (s *Store) Get(ctx context.Context, id string) (*asset.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// Update persists changes to an existing asset. The payload column is left
// untouched; captured bytes never change after creation.
func (s *Store) Update(ctx context.Context, a *asset.Asset) error {
	if a == nil {
		return errors.New("asset is nil")
	}
	a.UpdatedAt = time.Now().UTC()
	gpsJSON, sourceJSON, extraJSON, err := encodeOptionalColumns(a)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE assets
         SET mime_type = ?, width = ?, height = ?, capture_mode = ?, status = ?,
             progress = ?, error_message = ?, error_type = ?, caption = ?,
             gps_json = ?, source_json = ?, remote_content_id = ?,
             remote_network_id = ?, extra_json = ?, updated_at = ?
         WHERE id = ?`,
		a.MIMEType,
		a.Width,
		a.Height,
		nullableString(a.CaptureMode),
		string(a.Status),
		a.Progress,
		nullableString(a.ErrorMessage),
		nullableString(a.ErrorType),
		nullableString(a.Caption),
		gpsJSON,
		sourceJSON,
		nullableString(a.RemoteContentID),
		nullableString(a.RemoteNetworkID),
		extraJSON,
		a.UpdatedAt.Format(time.RFC3339Nano),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns assets filtered by status set (or all assets when no status is
// provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...asset.Status) ([]*asset.Asset, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + assetColumns + ` FROM assets`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = string(status)
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*asset.Asset
	for rows.Next() {
		a, scanErr := scanAsset(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// IDs returns the identifiers of all stored assets ordered by creation time.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM assets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list asset ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes an asset by identifier. Returns false when nothing matched.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Count returns the number of stored assets, optionally filtered by status.
func (s *Store) Count(ctx context.Context, statuses ...asset.Status) (int64, error) {
	var (
		row *sql.Row
	)
	if len(statuses) == 0 {
		row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = string(status)
		}
		row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets WHERE status IN (`+placeholders+`)`, args...)
	}
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return count, nil
}
