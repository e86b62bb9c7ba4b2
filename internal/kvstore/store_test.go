package kvstore_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"snapseal/internal/kvstore"
)

func openStore(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	store := openStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetGetDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, kvstore.KeyAuthToken, "tok-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, kvstore.KeyAuthToken)
	if err != nil || got != "tok-1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := store.Set(ctx, kvstore.KeyAuthToken, "tok-2"); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}
	got, err = store.Get(ctx, kvstore.KeyAuthToken)
	if err != nil || got != "tok-2" {
		t.Fatalf("Get after overwrite = %q, %v", got, err)
	}

	if err := store.Delete(ctx, kvstore.KeyAuthToken); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, kvstore.KeyAuthToken); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestQueueIDsRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	ids, err := store.QueueIDs(ctx)
	if err != nil {
		t.Fatalf("QueueIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty queue, got %v", ids)
	}

	want := []string{"a", "b", "c"}
	if err := store.SetQueueIDs(ctx, want); err != nil {
		t.Fatalf("SetQueueIDs failed: %v", err)
	}
	ids, err = store.QueueIDs(ctx)
	if err != nil {
		t.Fatalf("QueueIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Fatalf("unexpected queue ids: %v", ids)
	}

	if err := store.SetQueueIDs(ctx, nil); err != nil {
		t.Fatalf("SetQueueIDs(nil) failed: %v", err)
	}
	ids, err = store.QueueIDs(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected cleared queue, got %v, %v", ids, err)
	}
}

func TestPauseFlagSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.db")
	ctx := context.Background()

	store, err := kvstore.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.SetQueuePaused(ctx, true); err != nil {
		t.Fatalf("SetQueuePaused failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := kvstore.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	paused, err := reopened.QueuePaused(ctx)
	if err != nil {
		t.Fatalf("QueuePaused failed: %v", err)
	}
	if !paused {
		t.Fatal("expected pause flag to survive reopen")
	}
}

func TestCreditWarningDismissalFlag(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	dismissed, err := store.CreditWarningDismissed(ctx)
	if err != nil || dismissed {
		t.Fatalf("expected undismissed default, got %v, %v", dismissed, err)
	}
	if err := store.SetCreditWarningDismissed(ctx, true); err != nil {
		t.Fatalf("SetCreditWarningDismissed failed: %v", err)
	}
	dismissed, err = store.CreditWarningDismissed(ctx)
	if err != nil || !dismissed {
		t.Fatalf("expected dismissed flag set, got %v, %v", dismissed, err)
	}
}

func TestConcurrentWritersAllSucceed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	const writers = 8
	const writesPerWriter = 25

	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writesPerWriter; i++ {
				key := fmt.Sprintf("stress.%d", w)
				if err := store.Set(ctx, key, fmt.Sprintf("%d", i)); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Set failed: %v", err)
	}

	for w := 0; w < writers; w++ {
		got, err := store.Get(ctx, fmt.Sprintf("stress.%d", w))
		if err != nil {
			t.Fatalf("Get after concurrent writes: %v", err)
		}
		if got != fmt.Sprintf("%d", writesPerWriter-1) {
			t.Fatalf("key stress.%d = %q, want %d", w, got, writesPerWriter-1)
		}
	}
}
