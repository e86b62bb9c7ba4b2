package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Well-known record keys. The small store holds only compact JSON/string
// records; asset payload bytes live exclusively in the blob store.
const (
	KeyAuthToken              = "auth.token"
	KeyRecorderID             = "auth.recorder"
	KeySettings               = "settings"
	KeyQueueIDs               = "queue.ids"
	KeyQueuePaused            = "queue.paused"
	KeyCreditWarningDismissed = "notices.credit_warning_dismissed"
)

// ErrNotFound indicates the requested key has no record.
var ErrNotFound = errors.New("record not found")

// Store manages small durable records backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the small-record database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// Pragmas are per-connection; a single pooled connection keeps them in
	// force for every record access.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
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
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS small_records (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`)
	if err != nil {
		return fmt.Errorf("init small_records schema: %w", err)
	}
	return nil
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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM small_records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get record %q: %w", key, err)
	}
	return value, nil
}

// Set upserts the value under key. The write is durable before returning.
func (s *Store) Set(ctx context.Context, key, value string) error {
	err := s.execWithRetry(
		ctx,
		`INSERT INTO small_records (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set record %q: %w", key, err)
	}
	return nil
}

// Delete removes the record under key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.execWithRetry(ctx, `DELETE FROM small_records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete record %q: %w", key, err)
	}
	return nil
}

// GetJSON decodes the record under key into out.
func (s *Store) GetJSON(ctx context.Context, key string, out any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode record %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// QueueIDs returns the persisted upload queue membership, oldest first. A
// missing record is an empty queue.
func (s *Store) QueueIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.GetJSON(ctx, KeyQueueIDs, &ids)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SetQueueIDs replaces the persisted queue membership.
func (s *Store) SetQueueIDs(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.SetJSON(ctx, KeyQueueIDs, ids)
}

// QueuePaused reports whether the upload engine was paused. A missing record
// means not paused.
func (s *Store) QueuePaused(ctx context.Context) (bool, error) {
	return s.boolRecord(ctx, KeyQueuePaused)
}

// SetQueuePaused persists the engine pause flag.
func (s *Store) SetQueuePaused(ctx context.Context, paused bool) error {
	return s.setBoolRecord(ctx, KeyQueuePaused, paused)
}

// CreditWarningDismissed reports whether the user dismissed the
// insufficient-credits warning.
func (s *Store) CreditWarningDismissed(ctx context.Context) (bool, error) {
	return s.boolRecord(ctx, KeyCreditWarningDismissed)
}

// SetCreditWarningDismissed persists the dismissal flag. The engine clears it
// on every new balance-exhaustion failure so the warning re-surfaces.
func (s *Store) SetCreditWarningDismissed(ctx context.Context, dismissed bool) error {
	return s.setBoolRecord(ctx, KeyCreditWarningDismissed, dismissed)
}

func (s *Store) boolRecord(ctx context.Context, key string) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return raw == "true", nil
}

func (s *Store) setBoolRecord(ctx context.Context, key string, value bool) error {
	if value {
		return s.Set(ctx, key, "true")
	}
	return s.Set(ctx, key, "false")
}
